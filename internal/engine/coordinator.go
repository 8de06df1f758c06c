package engine

import (
	"context"
	"log"
	"sync"

	"github.com/examgate/examgate/internal/assess"
)

// Submitter performs the grading call against the backend.
type Submitter interface {
	SubmitAttempt(ctx context.Context, attemptID string, p assess.SubmissionPayload) (assess.Result, error)
}

// ErrSubmitInFlight rejects a second submit issued while one is pending for
// the same attempt. Exactly one network request is dispatched per logical
// submission; the backend must never see concurrent duplicates.
var ErrSubmitInFlight = assess.Errorf(assess.CodeValidation, "a submission is already in flight for this attempt")

// Coordinator performs the one-shot handoff of a completed attempt to the
// grading backend and normalizes the graded result for presentation. It does
// not guarantee server-side idempotence (that is the backend's job), but it
// does guarantee at most one request per local submit action.
type Coordinator struct {
	submitter  Submitter
	assessment assess.Assessment
	attemptID  string

	mu       sync.Mutex
	inFlight bool
	closed   bool
}

func NewCoordinator(s Submitter, a assess.Assessment, attemptID string) *Coordinator {
	return &Coordinator{submitter: s, assessment: a, attemptID: attemptID}
}

// Submit validates the payload, dispatches exactly one grading request, and
// returns the normalized result. A concurrent call while one is pending
// fails with ErrSubmitInFlight. Errors from the backend keep their taxonomy
// code, so callers can distinguish retry-safe transport failures from
// terminal business rejections.
func (c *Coordinator) Submit(ctx context.Context, payload assess.SubmissionPayload) (assess.Result, error) {
	if len(payload.Answers) == 0 && requiresAnswers(c.assessment) {
		return assess.Result{}, assess.Errorf(assess.CodeValidation, "no answers recorded")
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return assess.Result{}, ErrSubmitInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	res, err := c.submitter.SubmitAttempt(ctx, c.attemptID, payload)
	if err != nil {
		return assess.Result{}, err
	}
	return c.normalize(res), nil
}

// SubmitAsync dispatches the submission on its own goroutine and invokes
// onDone with the outcome. The request is detached from ctx's cancellation:
// tearing down the hosting UI must not lose a learner's graded work. If the
// coordinator has been closed by the time grading finishes, the outcome is
// discarded instead of delivered.
func (c *Coordinator) SubmitAsync(ctx context.Context, payload assess.SubmissionPayload, onDone func(assess.Result, error)) {
	go func() {
		res, err := c.Submit(context.WithoutCancel(ctx), payload)

		c.mu.Lock()
		dead := c.closed
		c.mu.Unlock()
		if dead {
			if err != nil {
				log.Printf("engine: discarding submission outcome after close: %v", err)
			}
			return
		}
		if onDone != nil {
			onDone(res, err)
		}
	}()
}

// Close marks the hosting surface as gone. In-flight requests run to
// completion in the background; their results are simply not delivered.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// normalize reconciles the server result with the assessment's local
// configuration: the pass mark is re-derived from the passing threshold and
// per-question feedback is stripped when the assessment does not allow
// revealing it.
func (c *Coordinator) normalize(res assess.Result) assess.Result {
	if res.Percentage == 0 && c.assessment.TotalPoints > 0 {
		res.Percentage = res.Score / c.assessment.TotalPoints * 100
	}
	res.Passed = res.Percentage >= c.assessment.PassingScore
	if !c.assessment.ShowFeedback && !c.assessment.ShowCorrectAnswers {
		res.PerQuestion = nil
		return res
	}
	if !c.assessment.ShowCorrectAnswers {
		for i := range res.PerQuestion {
			res.PerQuestion[i].CorrectAnswer = nil
		}
	}
	return res
}

func requiresAnswers(a assess.Assessment) bool {
	for _, q := range a.Questions {
		if q.Required {
			return true
		}
	}
	// An assessment with no required questions still expects at least one
	// answer before grading makes sense.
	return len(a.Questions) > 0
}
