package grading

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/examgate/examgate/internal/assess"
)

// numericStrategy supports exact match or numeric tolerance via AnswerKey.
// Examples:
//
//	AnswerKey: ["3.14159", "tol=0.01"]   // absolute tolerance
//	AnswerKey: ["100", "reltol=0.05"]    // 5% relative tolerance
type numericStrategy struct{}

func (numericStrategy) Grade(_ context.Context, q assess.Question, ans assess.Answer) (Result, error) {
	res := Result{PointsMax: q.Points}
	if len(q.AnswerKey) == 0 {
		return res, nil
	}
	target := q.AnswerKey[0]

	var resp string
	switch ans.Kind() {
	case assess.AnswerNumber:
		resp = strconv.FormatFloat(ans.Number(), 'g', -1, 64)
	default:
		resp = ans.Text()
	}
	if resp == target {
		res.PointsAwarded = q.Points
		res.Correct = true
		return res, nil
	}

	rv, rOK := parseFloatLoose(resp)
	tv, tOK := parseFloatLoose(target)
	if !rOK || !tOK {
		return res, nil
	}

	absTol, relTol := parseTolerances(q.AnswerKey[1:])
	diff := math.Abs(rv - tv)
	pass := diff == 0
	if !pass && absTol >= 0 && diff <= absTol {
		pass = true
	}
	if !pass && relTol >= 0 && (diff <= relTol*math.Abs(tv)) {
		pass = true
	}
	if pass {
		res.PointsAwarded = q.Points
		res.Correct = true
	}
	return res, nil
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func parseTolerances(keys []string) (absTol float64, relTol float64) {
	absTol, relTol = -1, -1
	for _, k := range keys {
		k = strings.TrimSpace(strings.ToLower(k))
		if strings.HasPrefix(k, "tol=") {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "tol="), 64); err == nil {
				absTol = v
			}
		}
		if strings.HasPrefix(k, "reltol=") {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "reltol="), 64); err == nil {
				relTol = v
			}
		}
	}
	return
}
