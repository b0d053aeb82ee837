package fitting

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"
)

func pngFile(t *testing.T, name string) *File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &File{Name: name, MIME: "image/png", Data: buf.Bytes()}
}

func jpegFile(t *testing.T, name string) *File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return &File{Name: name, MIME: "image/jpeg", Data: buf.Bytes()}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	mu    sync.Mutex
	files map[string]*File
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	file, ok := f.files[rawURL]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return file, nil
}

type fakeInvoker struct {
	mu         sync.Mutex
	imageCalls int
	videoCalls int
	image      func(ctx context.Context, req WorkflowRequest) Outcome
	video      func(ctx context.Context, imageURL, connInfo string) (string, error)
}

func (f *fakeInvoker) GenerateImage(ctx context.Context, req WorkflowRequest) Outcome {
	f.mu.Lock()
	f.imageCalls++
	fn := f.image
	f.mu.Unlock()
	if fn == nil {
		return Outcome{Kind: OutcomeSuccess, ImageURL: "https://cdn.example.com/out.png"}
	}
	return fn(ctx, req)
}

func (f *fakeInvoker) GenerateVideo(ctx context.Context, imageURL, connInfo string) (string, error) {
	f.mu.Lock()
	f.videoCalls++
	fn := f.video
	f.mu.Unlock()
	if fn == nil {
		return "https://cdn.example.com/out.mp4", nil
	}
	return fn(ctx, imageURL, connInfo)
}

func (f *fakeInvoker) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageCalls, f.videoCalls
}
