package grading

import (
	"context"

	"github.com/examgate/examgate/internal/assess"
)

// Result is the outcome of grading a single question response.
type Result struct {
	PointsAwarded float64
	PointsMax     float64
	Correct       bool
	NeedsManual   bool // teacher review required (essay)
	Feedback      []string
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q assess.Question, ans assess.Answer) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q assess.Question, ans assess.Answer) (Result, error)
}

type defaultGrader struct {
	strategies map[assess.QuestionType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q assess.Question, ans assess.Answer) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{PointsMax: q.Points, NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, q, ans)
}

type Option func(*config)

type config struct {
	MaxEditDistance   int  // fill-blank fuzzy tolerance
	AllowPartialMulti bool // partial credit for multiple_choice without false positives
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }

// NewDefaultGrader installs built-in strategies for every question type the
// attempt engine delivers.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance:   1,
		AllowPartialMulti: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[assess.QuestionType]Strategy{
			assess.QuestionSingleChoice:   singleChoiceStrategy{},
			assess.QuestionTrueFalse:      singleChoiceStrategy{},
			assess.QuestionMultipleChoice: multiChoiceStrategy{allowPartial: cfg.AllowPartialMulti},
			assess.QuestionFillBlank:      fillBlankStrategy{maxEdit: cfg.MaxEditDistance},
			assess.QuestionNumeric:        numericStrategy{},
			assess.QuestionDate:           dateStrategy{},
			assess.QuestionEssay:          essayStrategy{},
		},
	}
}

// GradeAttempt scores a full submission payload against the assessment's
// questions. Unanswered questions score zero. The returned feedback follows
// question order; gating what the learner may see happens later, at the
// presentation boundary.
func GradeAttempt(ctx context.Context, g Grader, a assess.Assessment, p assess.SubmissionPayload) (float64, []assess.QuestionFeedback) {
	byQuestion := make(map[string]assess.Answer, len(p.Answers))
	for _, e := range p.Answers {
		byQuestion[e.QuestionID] = e.Answer
	}

	score := 0.0
	feedback := make([]assess.QuestionFeedback, 0, len(a.Questions))
	for _, q := range a.Questions {
		fb := assess.QuestionFeedback{QuestionID: q.ID, PointsMax: q.Points, CorrectAnswer: q.AnswerKey}
		if ans, ok := byQuestion[q.ID]; ok && !ans.IsEmpty() {
			res, err := g.Grade(ctx, q, ans)
			if err != nil {
				// A malformed response grades as zero rather than failing
				// the whole submission.
				fb.Explanation = "response could not be graded"
			} else {
				fb.Correct = res.Correct
				fb.PointsAwarded = res.PointsAwarded
				if len(res.Feedback) > 0 {
					fb.Explanation = res.Feedback[0]
				}
				score += res.PointsAwarded
			}
		}
		feedback = append(feedback, fb)
	}
	return score, feedback
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q assess.Question, ans assess.Answer) (Result, error) {
	res := Result{PointsMax: q.Points}
	got := ans.Strings()
	if len(got) != 1 {
		return res, nil
	}
	for _, k := range q.AnswerKey {
		if got[0] == k {
			res.PointsAwarded = q.Points
			res.Correct = true
			return res, nil
		}
	}
	return res, nil
}

type multiChoiceStrategy struct{ allowPartial bool }

func (s multiChoiceStrategy) Grade(_ context.Context, q assess.Question, ans assess.Answer) (Result, error) {
	res := Result{PointsMax: q.Points}
	correct := toSet(q.AnswerKey)
	resp := toSet(ans.Strings())

	if len(resp) > 0 && setEqual(correct, resp) {
		res.PointsAwarded = q.Points
		res.Correct = true
		return res, nil
	}
	hasFalsePositive := false
	for r := range resp {
		if _, ok := correct[r]; !ok {
			hasFalsePositive = true
			break
		}
	}
	if s.allowPartial && !hasFalsePositive && len(correct) > 0 {
		inter := 0
		for k := range resp {
			if _, ok := correct[k]; ok {
				inter++
			}
		}
		res.PointsAwarded = q.Points * (float64(inter) / float64(len(correct)))
	}
	return res, nil
}

type fillBlankStrategy struct{ maxEdit int }

func (s fillBlankStrategy) Grade(_ context.Context, q assess.Question, ans assess.Answer) (Result, error) {
	res := Result{PointsMax: q.Points}
	normResp := normalize(ans.Text())
	fuzzyHit := false
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		if nk == normResp {
			res.PointsAwarded = q.Points
			res.Correct = true
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
			fuzzyHit = true
		}
	}
	if fuzzyHit {
		res.PointsAwarded = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

type essayStrategy struct{}

func (essayStrategy) Grade(_ context.Context, q assess.Question, _ assess.Answer) (Result, error) {
	return Result{PointsMax: q.Points, NeedsManual: true, Feedback: []string{"manual grading required"}}, nil
}

// helpers

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
