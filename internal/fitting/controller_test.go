package fitting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestController(t *testing.T, inv Invoker, onTerminal func(Snapshot)) *Controller {
	t.Helper()
	c := NewController(ControllerOptions{
		Invoker:    inv,
		Simulator:  NewSimulator(SimulatorOptions{Tick: time.Millisecond}),
		ClientID:   "test",
		ImageRamp:  50 * time.Millisecond,
		VideoRamp:  20 * time.Millisecond,
		OnTerminal: onTerminal,
	})
	t.Cleanup(c.Close)
	return c
}

func TestControllerRunImageOnly(t *testing.T) {
	inv := &fakeInvoker{}
	var terminal []Snapshot
	c := newTestController(t, inv, func(s Snapshot) { terminal = append(terminal, s) })
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))

	res, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := GenerationResult{ImageURL: "https://cdn.example.com/out.png"}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}
	if c.Processing() {
		t.Fatalf("processing still set after completion")
	}
	snap := c.Snapshot()
	if snap.State != StateImageReady {
		t.Fatalf("state = %s, want image_ready", snap.State)
	}
	if !strings.HasPrefix(snap.ConnectionInfo, "test_") {
		t.Fatalf("connection info = %q", snap.ConnectionInfo)
	}
	if c.Simulator().Active() != 0 {
		t.Fatalf("ramp left running")
	}
	if images, videos := inv.calls(); images != 1 || videos != 0 {
		t.Fatalf("calls = %d/%d, want 1/0", images, videos)
	}
	if len(terminal) != 1 || terminal[0].Result != want {
		t.Fatalf("terminal callbacks = %+v", terminal)
	}
}

func TestControllerMissingHumanMakesNoCall(t *testing.T) {
	inv := &fakeInvoker{}
	c := newTestController(t, inv, nil)
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))

	res, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ErrorMessage == "" || res.ImageURL != "" {
		t.Fatalf("result = %+v, want missing-files error", res)
	}
	if images, _ := inv.calls(); images != 0 {
		t.Fatalf("invoker called %d times", images)
	}
	if c.Snapshot().State != StateIdle || c.Processing() {
		t.Fatalf("snapshot = %+v", c.Snapshot())
	}
}

func TestControllerProModeKeepsImageOnVideoFailure(t *testing.T) {
	inv := &fakeInvoker{video: func(context.Context, string, string) (string, error) {
		return "", errors.New("upstream exploded")
	}}
	c := newTestController(t, inv, nil)
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))

	res, _ := c.Run(context.Background(), true)
	if res.ImageURL != "https://cdn.example.com/out.png" {
		t.Fatalf("image url lost: %+v", res)
	}
	if res.VideoURL != "" || res.VideoErrorMessage == "" || res.ErrorMessage != "" {
		t.Fatalf("result = %+v", res)
	}
	if got := c.Snapshot().State; got != StateImageReady {
		t.Fatalf("state = %s, want image_ready", got)
	}
}

func TestControllerProModeSuccess(t *testing.T) {
	var gotConn, gotImage string
	inv := &fakeInvoker{video: func(_ context.Context, imageURL, connInfo string) (string, error) {
		gotImage, gotConn = imageURL, connInfo
		return "https://cdn.example.com/out.mp4", nil
	}}
	c := newTestController(t, inv, nil)
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))

	res, _ := c.Run(context.Background(), true)
	if res.VideoURL != "https://cdn.example.com/out.mp4" || res.ImageURL == "" {
		t.Fatalf("result = %+v", res)
	}
	snap := c.Snapshot()
	if snap.State != StateVideoReady || snap.Progress.Percent != 100 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if gotImage != res.ImageURL || gotConn != snap.ConnectionInfo {
		t.Fatalf("video call got (%q, %q)", gotImage, gotConn)
	}
}

func TestControllerRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	inv := &fakeInvoker{image: func(ctx context.Context, _ WorkflowRequest) Outcome {
		<-release
		return Outcome{Kind: OutcomeSuccess, ImageURL: "https://cdn.example.com/out.png"}
	}}
	c := newTestController(t, inv, nil)
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Run(context.Background(), false)
	}()
	waitFor(t, "run to start", c.Processing)

	if _, err := c.Run(context.Background(), false); !errors.Is(err, ErrBusy) {
		t.Fatalf("second run err = %v, want ErrBusy", err)
	}
	close(release)
	wg.Wait()
	if c.Processing() {
		t.Fatalf("processing not cleared")
	}
}

func TestControllerTimeoutStopsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	client, err := NewClient(ClientOptions{WorkflowURL: srv.URL, Timeout: 40 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c := NewController(ControllerOptions{
		Invoker:   client,
		Simulator: NewSimulator(SimulatorOptions{Tick: time.Millisecond}),
		ImageRamp: time.Hour,
	})
	defer c.Close()
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))

	res, _ := c.Run(context.Background(), false)
	want := Outcome{Kind: OutcomeTimeoutError}.Message()
	if res.ErrorMessage != want || res.ImageURL != "" {
		t.Fatalf("result = %+v, want timeout message", res)
	}
	if c.Simulator().Active() != 0 {
		t.Fatalf("ramp still active after timeout")
	}
	frozen := c.Simulator().Snapshot().Percent
	time.Sleep(20 * time.Millisecond)
	if got := c.Simulator().Snapshot().Percent; got != frozen {
		t.Fatalf("percent changed after timeout: %d -> %d", frozen, got)
	}
}

func TestControllerResetClearsState(t *testing.T) {
	c := newTestController(t, &fakeInvoker{}, nil)
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))
	if _, err := c.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}
	c.Reset()
	snap := c.Snapshot()
	if snap.State != StateIdle || snap.Result != (GenerationResult{}) || snap.Progress.Percent != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
	if c.Form().Slot(SlotHuman).HasFile() {
		t.Fatalf("form not reset")
	}
}

func TestControllerNewRunDiscardsPreviousResult(t *testing.T) {
	fail := false
	inv := &fakeInvoker{image: func(context.Context, WorkflowRequest) Outcome {
		if fail {
			return Outcome{Kind: OutcomeHTMLError}
		}
		return Outcome{Kind: OutcomeSuccess, ImageURL: "https://cdn.example.com/first.png"}
	}}
	c := newTestController(t, inv, nil)
	_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
	_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))
	if res, _ := c.Run(context.Background(), false); res.ImageURL == "" {
		t.Fatalf("first run failed: %+v", res)
	}
	fail = true
	res, _ := c.Run(context.Background(), false)
	if res.ImageURL != "" || res.ErrorMessage == "" {
		t.Fatalf("second result = %+v", res)
	}
}

func TestControllerResetRunCannotStopSuccessorProgress(t *testing.T) {
	releases := []chan struct{}{make(chan struct{}), make(chan struct{})}
	var mu sync.Mutex
	calls := 0
	inv := &fakeInvoker{image: func(ctx context.Context, _ WorkflowRequest) Outcome {
		mu.Lock()
		release := releases[calls]
		calls++
		mu.Unlock()
		<-release
		return Outcome{Kind: OutcomeSuccess, ImageURL: "https://cdn.example.com/late.png"}
	}}
	c := NewController(ControllerOptions{
		Invoker:   inv,
		Simulator: NewSimulator(SimulatorOptions{Tick: time.Millisecond}),
		ImageRamp: time.Hour,
	})
	defer c.Close()
	seed := func() {
		_ = c.Form().SetFromSample(SlotHuman, jpegFile(t, "h.jpg"))
		_ = c.Form().SetFromSample(SlotGarment, pngFile(t, "g.png"))
	}

	seed()
	firstDone := make(chan GenerationResult, 1)
	go func() {
		res, _ := c.Run(context.Background(), false)
		firstDone <- res
	}()
	waitFor(t, "first image call", func() bool { n, _ := inv.calls(); return n == 1 })

	c.Reset()
	seed()
	secondDone := make(chan GenerationResult, 1)
	go func() {
		res, _ := c.Run(context.Background(), false)
		secondDone <- res
	}()
	waitFor(t, "second image call", func() bool { n, _ := inv.calls(); return n == 2 })

	close(releases[0])
	if res := <-firstDone; res != (GenerationResult{}) {
		t.Fatalf("abandoned run returned %+v", res)
	}

	if c.Simulator().Active() != 1 {
		t.Fatalf("successor ramp was stopped by the abandoned run")
	}
	snap := c.Snapshot()
	if !snap.Processing || snap.State != StateAwaitingImage || snap.Result.ImageURL != "" {
		t.Fatalf("snapshot after abandoned run returned = %+v", snap)
	}

	close(releases[1])
	if res := <-secondDone; res.ImageURL == "" {
		t.Fatalf("second run result = %+v", res)
	}
	if c.Simulator().Active() != 0 {
		t.Fatalf("ramp still active after the second run finished")
	}
}
