// Package engine implements the client side of an attempt session: loading
// and shuffling the question set, tracking in-progress answers, and the
// one-shot submission handoff to the grading backend.
package engine

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/examgate/examgate/internal/assess"
)

// Fetcher retrieves the immutable question set for an assessment.
type Fetcher interface {
	FetchAssessment(ctx context.Context, assessmentID string) (assess.Assessment, error)
}

// Loader fetches an assessment once per attempt session and applies the
// configured randomization. It holds no cache: every Load is authoritative
// for "now", and a reload produces a fresh permutation (a reload implies a
// new session).
type Loader struct {
	fetcher Fetcher
	rnd     *rand.Rand
}

type LoaderOption func(*Loader)

// WithRandSource fixes the shuffle source, for deterministic tests.
func WithRandSource(src rand.Source) LoaderOption {
	return func(l *Loader) { l.rnd = rand.New(src) }
}

func NewLoader(f Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher: f,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches the assessment and, when its configuration asks for it,
// shuffles question order and each question's option order independently.
// The permutation is computed here and held fixed for the session.
func (l *Loader) Load(ctx context.Context, assessmentID string) (assess.Assessment, error) {
	if strings.TrimSpace(assessmentID) == "" {
		return assess.Assessment{}, assess.Errorf(assess.CodeValidation, "assessment id required")
	}
	a, err := l.fetcher.FetchAssessment(ctx, assessmentID)
	if err != nil {
		return assess.Assessment{}, err
	}
	if a.ShuffleQuestions {
		shuffleQuestions(l.rnd, a.Questions)
	}
	if a.ShuffleOptions {
		for i := range a.Questions {
			shuffleOptions(l.rnd, a.Questions[i].Options)
		}
	}
	return a, nil
}

// Fisher-Yates: swap each element with a uniformly chosen one at an
// earlier-or-equal index, yielding an unbiased permutation.

func shuffleQuestions(rnd *rand.Rand, qs []assess.Question) {
	for i := len(qs) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

func shuffleOptions(rnd *rand.Rand, opts []assess.Option) {
	for i := len(opts) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		opts[i], opts[j] = opts[j], opts[i]
	}
}
