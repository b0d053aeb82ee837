package fitting

import (
	"testing"
	"time"
)

func TestRampPercent(t *testing.T) {
	const d = 19 * time.Second
	if got := RampPercent(5, 100, 0, d); got != 5 {
		t.Fatalf("t=0: %d, want 5", got)
	}
	if got := RampPercent(5, 100, d, d); got != 100 {
		t.Fatalf("t=T: %d, want 100", got)
	}
	if got := RampPercent(5, 100, 2*d, d); got != 100 {
		t.Fatalf("t>T: %d, want 100", got)
	}
	if got := RampPercent(5, 100, d/2, d); got != 53 {
		t.Fatalf("t=T/2: %d, want 53", got)
	}
	prev := -1
	for elapsed := time.Duration(0); elapsed <= d; elapsed += 37 * time.Millisecond {
		got := RampPercent(5, 100, elapsed, d)
		if got < prev {
			t.Fatalf("percent decreased at %v: %d < %d", elapsed, got, prev)
		}
		prev = got
	}
}

func TestSimulatorRampFollowsClock(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulator(SimulatorOptions{Now: clock.Now, Tick: time.Millisecond})
	defer sim.Close()

	sim.Ramp(5, 100, 10*time.Second)
	if got := sim.Snapshot().Percent; got != 5 {
		t.Fatalf("start percent = %d, want 5", got)
	}
	clock.Advance(5 * time.Second)
	waitFor(t, "midpoint", func() bool { return sim.Snapshot().Percent == 53 })

	clock.Advance(5 * time.Second)
	waitFor(t, "ramp to finish", func() bool { return sim.Active() == 0 })
	if got := sim.Snapshot().Percent; got != 100 {
		t.Fatalf("end percent = %d, want 100", got)
	}
}

func TestSimulatorMonotonicWithinRamp(t *testing.T) {
	sim := NewSimulator(SimulatorOptions{Tick: time.Millisecond})
	defer sim.Close()

	sim.Ramp(5, 100, 60*time.Millisecond)
	prev := 0
	for sim.Active() == 1 {
		got := sim.Snapshot().Percent
		if got < prev {
			t.Fatalf("percent decreased: %d < %d", got, prev)
		}
		prev = got
		time.Sleep(time.Millisecond)
	}
	if got := sim.Snapshot().Percent; got != 100 {
		t.Fatalf("final percent = %d, want 100", got)
	}
}

func TestSimulatorSecondRampReplacesFirst(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulator(SimulatorOptions{Now: clock.Now, Tick: time.Millisecond})
	defer sim.Close()

	sim.Ramp(0, 50, time.Second)
	sim.Ramp(90, 100, time.Second)
	if got := sim.Active(); got != 1 {
		t.Fatalf("active ramps = %d, want 1", got)
	}
	if got := sim.Snapshot().Percent; got != 90 {
		t.Fatalf("percent = %d, want new baseline 90", got)
	}
	clock.Advance(500 * time.Millisecond)
	waitFor(t, "second ramp progress", func() bool { return sim.Snapshot().Percent == 95 })
	for i := 0; i < 20; i++ {
		if got := sim.Snapshot().Percent; got < 90 {
			t.Fatalf("first ramp wrote %d after being replaced", got)
		}
		if got := sim.Active(); got > 1 {
			t.Fatalf("active ramps = %d", got)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSimulatorCancelStopsUpdates(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulator(SimulatorOptions{Now: clock.Now, Tick: time.Millisecond})
	defer sim.Close()

	sim.Ramp(5, 100, 10*time.Second)
	clock.Advance(time.Second)
	waitFor(t, "first tick", func() bool { return sim.Snapshot().Percent > 5 })
	sim.Cancel()
	sim.Cancel()
	if sim.Active() != 0 {
		t.Fatalf("ramp still active after cancel")
	}
	frozen := sim.Snapshot().Percent
	clock.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := sim.Snapshot().Percent; got != frozen {
		t.Fatalf("percent moved after cancel: %d -> %d", frozen, got)
	}
}

func TestSimulatorSubscribe(t *testing.T) {
	sim := NewSimulator(SimulatorOptions{Tick: time.Millisecond})
	ch, cancel := sim.Subscribe()
	defer cancel()

	sim.Set(ProgressState{Percent: 42, Phase: PhaseImage, StatusMessage: "working"})
	select {
	case got := <-ch:
		if got.Percent != 42 || got.Phase != PhaseImage {
			t.Fatalf("unexpected snapshot %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot delivered")
	}

	sim.Close()
	for range ch {
	}
}
