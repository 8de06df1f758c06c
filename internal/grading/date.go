package grading

import (
	"context"
	"strings"
	"time"

	"github.com/examgate/examgate/internal/assess"
)

// dateStrategy compares calendar dates. Both key and response are parsed as
// ISO dates so that "2026-05-01" and "2026-05-01T00:00:00Z" agree; if either
// side fails to parse, an exact string match is the fallback.
type dateStrategy struct{}

func (dateStrategy) Grade(_ context.Context, q assess.Question, ans assess.Answer) (Result, error) {
	res := Result{PointsMax: q.Points}
	if len(q.AnswerKey) == 0 {
		return res, nil
	}
	resp := strings.TrimSpace(ans.Text())
	key := strings.TrimSpace(q.AnswerKey[0])

	rd, rOK := parseDate(resp)
	kd, kOK := parseDate(key)
	match := resp == key
	if rOK && kOK {
		match = rd.Equal(kd)
	}
	if match {
		res.PointsAwarded = q.Points
		res.Correct = true
	}
	return res, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}
