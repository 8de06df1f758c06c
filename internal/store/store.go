// Package store persists assessments, attempts, and reported violations for
// the reference grading service. The SQL store is the real one; the memory
// store backs tests and single-process demos.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examgate/examgate/internal/assess"
	"github.com/examgate/examgate/internal/grading"
)

type Store interface {
	PutAssessment(ctx context.Context, a assess.Assessment) error
	// GetAssessment returns the learner-facing view: answer keys and option
	// correctness stripped.
	GetAssessment(ctx context.Context, id string) (assess.Assessment, error)
	// StartAttempt opens attempt number n+1 for the user, or fails with an
	// attempts-exhausted error once the configured bound is reached.
	StartAttempt(ctx context.Context, assessmentID, userID string) (assess.Attempt, error)
	// SubmitAttempt grades the payload and finalizes the attempt. A second
	// submission of the same attempt is rejected, not re-graded.
	SubmitAttempt(ctx context.Context, attemptID, userID string, p assess.SubmissionPayload) (assess.Result, error)
	// GetResult returns the graded breakdown of a finalized attempt.
	GetResult(ctx context.Context, attemptID, userID string) (assess.Result, error)
	SaveViolations(ctx context.Context, attemptID string, vs []assess.Violation) error
}

// Sanitize strips everything a learner must not see before grading.
func Sanitize(a assess.Assessment) assess.Assessment {
	qs := make([]assess.Question, len(a.Questions))
	copy(qs, a.Questions)
	for i := range qs {
		qs[i].AnswerKey = nil
		if len(qs[i].Options) > 0 {
			opts := make([]assess.Option, len(qs[i].Options))
			copy(opts, qs[i].Options)
			for j := range opts {
				opts[j].Correct = false
			}
			qs[i].Options = opts
		}
	}
	a.Questions = qs
	return a
}

// TotalPoints falls back to the question sum when the assessment does not
// declare a total.
func TotalPoints(a assess.Assessment) float64 {
	if a.TotalPoints > 0 {
		return a.TotalPoints
	}
	sum := 0.0
	for _, q := range a.Questions {
		sum += q.Points
	}
	return sum
}

// Gate applies the assessment's reveal policy to a graded result: feedback
// disappears entirely unless one of the Show* flags is set, and correct
// answers stay hidden without ShowCorrectAnswers.
func Gate(a assess.Assessment, res assess.Result) assess.Result {
	if !a.ShowFeedback && !a.ShowCorrectAnswers {
		res.PerQuestion = nil
		return res
	}
	if !a.ShowCorrectAnswers {
		gated := make([]assess.QuestionFeedback, len(res.PerQuestion))
		copy(gated, res.PerQuestion)
		for i := range gated {
			gated[i].CorrectAnswer = nil
		}
		res.PerQuestion = gated
	}
	return res
}

func buildResult(a assess.Assessment, attemptID string, score float64, fb []assess.QuestionFeedback, attemptNumber int) assess.Result {
	total := TotalPoints(a)
	pct := 0.0
	if total > 0 {
		pct = score / total * 100
	}
	remaining := 0
	if a.MaxAttempts > 0 {
		remaining = a.MaxAttempts - attemptNumber
		if remaining < 0 {
			remaining = 0
		}
	}
	return Gate(a, assess.Result{
		AttemptID:         attemptID,
		Score:             score,
		Percentage:        pct,
		Passed:            pct >= a.PassingScore,
		PerQuestion:       fb,
		AttemptsRemaining: remaining,
	})
}

type memAttempt struct {
	attempt  assess.Attempt
	feedback []assess.QuestionFeedback
}

type memoryStore struct {
	mu          sync.RWMutex
	grader      grading.Grader
	assessments map[string]assess.Assessment
	attempts    map[string]*memAttempt
	violations  map[string][]assess.Violation
}

func NewMemoryStore(g grading.Grader) Store {
	return &memoryStore{
		grader:      g,
		assessments: map[string]assess.Assessment{},
		attempts:    map[string]*memAttempt{},
		violations:  map[string][]assess.Violation{},
	}
}

func (m *memoryStore) PutAssessment(_ context.Context, a assess.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.CreatedAt = time.Now().Unix()
	m.assessments[a.ID] = a
	return nil
}

func (m *memoryStore) GetAssessment(_ context.Context, id string) (assess.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok {
		return assess.Assessment{}, assess.Errorf(assess.CodeNotFound, "assessment %s not found", id)
	}
	return Sanitize(a), nil
}

func (m *memoryStore) StartAttempt(_ context.Context, assessmentID, userID string) (assess.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[assessmentID]
	if !ok {
		return assess.Attempt{}, assess.Errorf(assess.CodeNotFound, "assessment %s not found", assessmentID)
	}
	prior := 0
	for _, at := range m.attempts {
		if at.attempt.AssessmentID == assessmentID && at.attempt.UserID == userID {
			prior++
		}
	}
	if a.MaxAttempts > 0 && prior >= a.MaxAttempts {
		return assess.Attempt{}, assess.Errorf(assess.CodeAttemptsExhausted, "no attempts remaining")
	}
	at := assess.Attempt{
		ID:            uuid.NewString(),
		AssessmentID:  assessmentID,
		UserID:        userID,
		AttemptNumber: prior + 1,
		Status:        assess.StatusInProgress,
		Responses:     map[string]assess.Answer{},
		StartedAt:     time.Now().Unix(),
	}
	m.attempts[at.ID] = &memAttempt{attempt: at}
	return at, nil
}

func (m *memoryStore) SubmitAttempt(ctx context.Context, attemptID, userID string, p assess.SubmissionPayload) (assess.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.attempts[attemptID]
	if !ok || at.attempt.UserID != userID {
		return assess.Result{}, assess.Errorf(assess.CodeNotFound, "attempt %s not found", attemptID)
	}
	if at.attempt.Status != assess.StatusInProgress {
		return assess.Result{}, assess.Errorf(assess.CodeAlreadySubmitted, "attempt already submitted")
	}
	a := m.assessments[at.attempt.AssessmentID]

	score, fb := grading.GradeAttempt(ctx, m.grader, a, p)
	at.attempt.Status = assess.StatusGraded
	at.attempt.Score = score
	at.attempt.SubmittedAt = time.Now().Unix()
	at.attempt.Responses = map[string]assess.Answer{}
	for _, e := range p.Answers {
		at.attempt.Responses[e.QuestionID] = e.Answer
	}
	at.feedback = fb
	return buildResult(a, attemptID, score, fb, at.attempt.AttemptNumber), nil
}

func (m *memoryStore) GetResult(_ context.Context, attemptID, userID string) (assess.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.attempts[attemptID]
	if !ok || at.attempt.UserID != userID {
		return assess.Result{}, assess.Errorf(assess.CodeNotFound, "attempt %s not found", attemptID)
	}
	if at.attempt.Status == assess.StatusInProgress {
		return assess.Result{}, assess.Errorf(assess.CodeValidation, "attempt not submitted yet")
	}
	a := m.assessments[at.attempt.AssessmentID]
	return buildResult(a, attemptID, at.attempt.Score, at.feedback, at.attempt.AttemptNumber), nil
}

func (m *memoryStore) SaveViolations(_ context.Context, attemptID string, vs []assess.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return assess.Errorf(assess.CodeNotFound, "attempt %s not found", attemptID)
	}
	m.violations[attemptID] = append(m.violations[attemptID], vs...)
	return nil
}
