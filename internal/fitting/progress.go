package fitting

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultTickInterval is how often an active ramp refreshes the percentage.
const DefaultTickInterval = 100 * time.Millisecond

// RampPercent interpolates linearly between from and to for the elapsed share
// of d, rounded to the nearest integer and clamped to the ramp's bounds.
func RampPercent(from, to int, elapsed, d time.Duration) int {
	if d <= 0 || elapsed >= d {
		return to
	}
	if elapsed <= 0 {
		return from
	}
	ratio := float64(elapsed) / float64(d)
	return int(math.Round(float64(from) + float64(to-from)*ratio))
}

// SimulatorOptions configures a Simulator.
type SimulatorOptions struct {
	Now  func() time.Time
	Tick time.Duration
}

type rampHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Simulator drives a cosmetic progress percentage that is decoupled from
// remote completion. Only one ramp is ever active: starting a ramp cancels
// the previous one through the handle it owns.
type Simulator struct {
	opMu sync.Mutex

	mu      sync.Mutex
	state   ProgressState
	current *rampHandle
	subs    map[int]chan ProgressState
	nextSub int
	closed  bool

	now  func() time.Time
	tick time.Duration
}

// NewSimulator returns an idle simulator.
func NewSimulator(opts SimulatorOptions) *Simulator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Simulator{
		state: ProgressState{Phase: PhaseIdle},
		subs:  make(map[int]chan ProgressState),
		now:   now,
		tick:  tick,
	}
}

// Ramp starts a new ramp from→to over d, replacing any active ramp.
func (s *Simulator) Ramp(from, to int, d time.Duration) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stopCurrent()

	ctx, cancel := context.WithCancel(context.Background())
	h := &rampHandle{cancel: cancel, done: make(chan struct{})}
	start := s.now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.current = h
	s.state.Percent = from
	snap := s.state
	s.mu.Unlock()
	s.publish(snap)

	go s.run(ctx, h, from, to, d, start)
}

func (s *Simulator) run(ctx context.Context, h *rampHandle, from, to int, d time.Duration, start time.Time) {
	defer close(h.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		elapsed := s.now().Sub(start)
		pct := RampPercent(from, to, elapsed, d)
		finished := d <= 0 || elapsed >= d

		s.mu.Lock()
		if s.current != h {
			s.mu.Unlock()
			return
		}
		if pct > s.state.Percent {
			s.state.Percent = pct
		}
		if finished {
			s.current = nil
		}
		snap := s.state
		s.mu.Unlock()
		s.publish(snap)

		if finished {
			h.cancel()
			return
		}
	}
}

// Cancel stops the active ramp, if any. It is safe to call repeatedly.
func (s *Simulator) Cancel() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stopCurrent()
}

func (s *Simulator) stopCurrent() {
	s.mu.Lock()
	h := s.current
	s.current = nil
	s.mu.Unlock()
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}

// Active reports how many ramps currently own a timer (0 or 1).
func (s *Simulator) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return 1
	}
	return 0
}

// Set overwrites the visible state, used by terminal handlers and phase changes.
func (s *Simulator) Set(state ProgressState) {
	s.mu.Lock()
	s.state = state
	snap := s.state
	s.mu.Unlock()
	s.publish(snap)
}

// SetMessage updates only the status message.
func (s *Simulator) SetMessage(msg string) {
	s.mu.Lock()
	s.state.StatusMessage = msg
	snap := s.state
	s.mu.Unlock()
	s.publish(snap)
}

// Snapshot returns the current progress.
func (s *Simulator) Snapshot() ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel of progress snapshots. Slow subscribers miss
// intermediate values rather than blocking the ramp.
func (s *Simulator) Subscribe() (<-chan ProgressState, func()) {
	ch := make(chan ProgressState, 16)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Simulator) publish(state ProgressState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

// Close cancels any ramp and releases every subscriber.
func (s *Simulator) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stopCurrent()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
