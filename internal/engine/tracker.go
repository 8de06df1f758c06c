package engine

import (
	"sync"
	"time"

	"github.com/examgate/examgate/internal/assess"
)

type TrackerState int

const (
	StateNotStarted TrackerState = iota
	StateInProgress
	StateSubmitted
)

// Tracker holds the mutable, in-progress record of one learner's answers and
// elapsed time. Nothing is committed to the backend until the payload is
// handed to the Coordinator. The answer map is owned exclusively by this
// tracker; submission is a one-way transition after which all mutators are
// silent no-ops, so lingering input events racing a submit cannot corrupt
// the committed payload.
type Tracker struct {
	mu         sync.Mutex
	assessment assess.Assessment
	state      TrackerState
	answers    map[string]assess.Answer
	timeSpent  map[string]int // questionID -> accumulated seconds
	startedAt  time.Time
	frozenAt   time.Time // set on submission
	now        func() time.Time
}

type TrackerOption func(*Tracker)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(a assess.Assessment, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		assessment: a,
		answers:    map[string]assess.Answer{},
		timeSpent:  map[string]int{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Begin transitions not-started -> in-progress and stamps the start time.
// Calling it again is a no-op.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.begin()
}

func (t *Tracker) begin() {
	if t.state != StateNotStarted {
		return
	}
	t.state = StateInProgress
	t.startedAt = t.now()
}

func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RecordAnswer overwrites any prior value for the question (last write
// wins). The value's shape is not validated against the question schema;
// that is a presentation concern. Recording starts the attempt implicitly
// and is ignored once the attempt is submitted.
func (t *Tracker) RecordAnswer(questionID string, value assess.Answer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateSubmitted {
		return
	}
	t.begin()
	t.answers[questionID] = value
}

// RecordTimeSpent accumulates seconds spent on a question. Revisits add up;
// calls after submission are ignored.
func (t *Tracker) RecordTimeSpent(questionID string, deltaSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateSubmitted || deltaSeconds <= 0 {
		return
	}
	t.begin()
	t.timeSpent[questionID] += deltaSeconds
}

// Answer returns the stored answer for a question, if any.
func (t *Tracker) Answer(questionID string) (assess.Answer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.answers[questionID]
	return a, ok
}

// IsComplete reports whether every required question has a non-empty answer.
func (t *Tracker) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, q := range t.assessment.Questions {
		if !q.Required {
			continue
		}
		if a, ok := t.answers[q.ID]; !ok || a.IsEmpty() {
			return false
		}
	}
	return true
}

// MarkSubmitted makes the submitted transition. The payload is frozen at
// this instant; later RecordAnswer/RecordTimeSpent calls have no effect.
func (t *Tracker) MarkSubmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateSubmitted {
		return
	}
	t.begin()
	t.state = StateSubmitted
	t.frozenAt = t.now()
}

// Payload assembles the commit-ready submission: answered questions in
// presentation order with their accumulated time, the overall elapsed time,
// and the start/submit timestamps. It is a pure read and may be called any
// number of times (e.g. for a review screen) before the actual submission.
func (t *Tracker) Payload() assess.SubmissionPayload {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.frozenAt
	if end.IsZero() {
		end = t.now()
	}
	start := t.startedAt
	if start.IsZero() {
		start = end
	}

	entries := make([]assess.AnswerEntry, 0, len(t.answers))
	for _, q := range t.assessment.Questions {
		a, ok := t.answers[q.ID]
		if !ok || a.IsEmpty() {
			continue
		}
		entries = append(entries, assess.AnswerEntry{
			QuestionID:       q.ID,
			Answer:           a,
			TimeSpentSeconds: t.timeSpent[q.ID],
		})
	}
	return assess.SubmissionPayload{
		Answers:               entries,
		TotalTimeSpentSeconds: int(end.Sub(start) / time.Second),
		StartedAt:             start.Unix(),
		SubmittedAt:           end.Unix(),
	}
}
