// Package proctor observes browser-style integrity signals during an active
// attempt and keeps a live, append-only violation log. It is advisory, not a
// security boundary: every check degrades silently when the hosting surface
// cannot support it, because an integrity helper must never crash the
// exam-taking experience.
package proctor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/examgate/examgate/internal/assess"
)

// EventType names a raw signal delivered by the hosting surface.
type EventType string

const (
	EventVisibilityHidden EventType = "visibility_hidden"
	EventWindowBlur       EventType = "window_blur"
	EventFullscreenChange EventType = "fullscreen_change"
	EventCopy             EventType = "copy"
	EventPaste            EventType = "paste"
	EventContextMenu      EventType = "context_menu"
	EventPrint            EventType = "print"
)

// Event is one raw signal. Fullscreen carries the new state for
// EventFullscreenChange and is ignored otherwise.
type Event struct {
	Type       EventType
	At         time.Time
	Fullscreen bool
}

// FullscreenController abstracts the host's fullscreen capability. A nil
// controller means the capability is unsupported and fullscreen operations
// become no-ops.
type FullscreenController interface {
	Request(ctx context.Context) error
	Exit(ctx context.Context) error
}

// DevToolsProbe reports whether developer tooling currently appears open.
// Detection is best-effort and polled on a timer rather than event-driven.
type DevToolsProbe interface {
	Detect() bool
}

// Options enumerate which checks are active. An omitted flag means "do not
// monitor that category".
type Options struct {
	EnableFullscreen   bool
	EnableTabDetection bool
	EnableCopyPaste    bool
	EnableContextMenu  bool
	EnablePrint        bool
	EnableDevTools     bool

	// MaxViolations is the threshold after which ExceededMax flips true.
	// Zero disables the threshold.
	MaxViolations int

	// PollInterval paces the devtools probe. Defaults to 2s.
	PollInterval time.Duration

	// OnViolation, when set, is invoked for every recorded violation.
	OnViolation func(assess.Violation)

	Fullscreen FullscreenController
	DevTools   DevToolsProbe
}

// Monitor is one monitoring session. Counters are private to the instance:
// a fresh attempt gets a fresh Monitor and starts from zero, never carrying
// counts over. The log is append-only and never retroactively cleared.
type Monitor struct {
	opts Options

	mu           sync.Mutex
	started      bool
	stopped      bool
	violations   []assess.Violation
	counts       map[assess.ViolationCategory]int
	exceeded     bool
	isFullscreen bool
	devtoolsOpen bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewMonitor(opts Options) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Monitor{
		opts:   opts,
		counts: map[assess.ViolationCategory]int{},
		done:   make(chan struct{}),
	}
}

// Start activates the session. When devtools monitoring is enabled and a
// probe is available, a poll loop runs until Stop; everything else is fed
// through Observe. Start is idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	pollDevTools := m.opts.EnableDevTools && m.opts.DevTools != nil
	m.mu.Unlock()

	if !pollDevTools {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.opts.PollInterval)
		defer t.Stop()
		for {
			select {
			case <-m.done:
				return
			case now := <-t.C:
				m.probeDevTools(now)
			}
		}
	}()
}

// Stop tears the session down deterministically: the poll loop exits and
// later events are ignored. No timers or goroutines survive Stop, so
// repeated start/stop cycles cannot leak.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.done)
	m.wg.Wait()
}

// Observe feeds one raw event into the session. Events arriving before
// Start or after Stop are ignored. A blur and a visibility change caused by
// the same user action both count: they are distinct categories, and either
// signal alone is an incomplete detector.
func (m *Monitor) Observe(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	var v *assess.Violation
	switch e.Type {
	case EventVisibilityHidden:
		if m.opts.EnableTabDetection {
			v = m.record(assess.ViolationTabSwitch, e.At)
		}
	case EventWindowBlur:
		if m.opts.EnableTabDetection {
			v = m.record(assess.ViolationWindowBlur, e.At)
		}
	case EventFullscreenChange:
		wasFullscreen := m.isFullscreen
		m.isFullscreen = e.Fullscreen
		// Only a true exit counts; rapid toggling must not double-count.
		if m.opts.EnableFullscreen && wasFullscreen && !e.Fullscreen {
			v = m.record(assess.ViolationFullscreenExit, e.At)
		}
	case EventCopy:
		if m.opts.EnableCopyPaste {
			v = m.record(assess.ViolationCopy, e.At)
		}
	case EventPaste:
		if m.opts.EnableCopyPaste {
			v = m.record(assess.ViolationPaste, e.At)
		}
	case EventContextMenu:
		if m.opts.EnableContextMenu {
			v = m.record(assess.ViolationContextMenu, e.At)
		}
	case EventPrint:
		if m.opts.EnablePrint {
			v = m.record(assess.ViolationPrint, e.At)
		}
	}
	m.mu.Unlock()

	if v != nil && m.opts.OnViolation != nil {
		m.opts.OnViolation(*v)
	}
}

// probeDevTools records a violation on the closed->open edge only, so an
// inspector left open does not count once per poll tick.
func (m *Monitor) probeDevTools(now time.Time) {
	open := m.opts.DevTools.Detect()
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	var v *assess.Violation
	if open && !m.devtoolsOpen {
		v = m.record(assess.ViolationDevTools, now)
	}
	m.devtoolsOpen = open
	m.mu.Unlock()

	if v != nil && m.opts.OnViolation != nil {
		m.opts.OnViolation(*v)
	}
}

// record must be called with m.mu held.
func (m *Monitor) record(cat assess.ViolationCategory, at time.Time) *assess.Violation {
	m.counts[cat]++
	v := assess.Violation{Category: cat, Ordinal: m.counts[cat], UnixMilli: at.UnixMilli()}
	m.violations = append(m.violations, v)
	if m.opts.MaxViolations > 0 && len(m.violations) >= m.opts.MaxViolations {
		m.exceeded = true
	}
	return &v
}

// RequestFullscreen asks the host to enter fullscreen. Failures are logged,
// never returned: an unsupported or refused fullscreen API leaves the state
// unchanged and the session running.
func (m *Monitor) RequestFullscreen(ctx context.Context) {
	if m.opts.Fullscreen == nil {
		return
	}
	if err := m.opts.Fullscreen.Request(ctx); err != nil {
		log.Printf("proctor: fullscreen request failed: %v", err)
		return
	}
	m.mu.Lock()
	m.isFullscreen = true
	m.mu.Unlock()
}

// ExitFullscreen leaves fullscreen, best-effort. A deliberate exit through
// this method still goes through Observe on the host side and is counted
// there if fullscreen monitoring is on.
func (m *Monitor) ExitFullscreen(ctx context.Context) {
	if m.opts.Fullscreen == nil {
		return
	}
	if err := m.opts.Fullscreen.Exit(ctx); err != nil {
		log.Printf("proctor: fullscreen exit failed: %v", err)
		return
	}
	m.mu.Lock()
	m.isFullscreen = false
	m.mu.Unlock()
}

// Violations returns the full log in insertion order.
func (m *Monitor) Violations() []assess.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]assess.Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Counts returns the per-category totals.
func (m *Monitor) Counts() map[assess.ViolationCategory]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[assess.ViolationCategory]int, len(m.counts))
	for k, n := range m.counts {
		out[k] = n
	}
	return out
}

func (m *Monitor) TotalViolations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.violations)
}

// ExceededMax is monotonic: once the total crosses MaxViolations it stays
// true for the rest of the session.
func (m *Monitor) ExceededMax() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exceeded
}

func (m *Monitor) IsFullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isFullscreen
}
