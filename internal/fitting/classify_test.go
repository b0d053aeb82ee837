package fitting

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
)

func TestClassifyImageResponse(t *testing.T) {
	cdn := regexp.MustCompile(DefaultCDNPattern)
	tests := []struct {
		name          string
		status        int
		body          string
		hadBackground bool
		cdn           *regexp.Regexp
		wantKind      OutcomeKind
		wantURL       string
		wantRecovered bool
	}{
		{
			name:          "server fault with background",
			status:        http.StatusInternalServerError,
			body:          "Internal Server Error",
			hadBackground: true,
			cdn:           cdn,
			wantKind:      OutcomeBackgroundError,
		},
		{
			name:     "server fault without background",
			status:   http.StatusInternalServerError,
			body:     "Internal Server Error",
			cdn:      cdn,
			wantKind: OutcomeServerError,
		},
		{
			name:     "json success",
			status:   http.StatusOK,
			body:     `{"image_url":"https://cdn.example.com/r/abc.png"}`,
			cdn:      cdn,
			wantKind: OutcomeSuccess,
			wantURL:  "https://cdn.example.com/r/abc.png",
		},
		{
			name:          "recovered from malformed body",
			status:        http.StatusOK,
			body:          `{"image_url": "https://cdn.example.com/r/abc.png?sig=1", "extra": }`,
			cdn:           cdn,
			wantKind:      OutcomeSuccess,
			wantURL:       "https://cdn.example.com/r/abc.png?sig=1",
			wantRecovered: true,
		},
		{
			name:     "no recovery without pattern",
			status:   http.StatusOK,
			body:     `result: https://cdn.example.com/r/abc.png`,
			wantKind: OutcomeParseError,
		},
		{
			name:     "html page",
			status:   http.StatusBadGateway,
			body:     "<!DOCTYPE html><html><body>Bad gateway</body></html>",
			cdn:      cdn,
			wantKind: OutcomeHTMLError,
		},
		{
			name:     "marker on another status",
			status:   http.StatusBadRequest,
			body:     "Internal Server Error: pose detection failed",
			cdn:      cdn,
			wantKind: OutcomeMinimumBodyError,
		},
		{
			name:     "image url on an error status",
			status:   http.StatusBadGateway,
			body:     `{"image_url":"https://cdn.example.com/r/abc.png","error":"upstream busy"}`,
			cdn:      cdn,
			wantKind: OutcomeParseError,
		},
		{
			name:     "echoed input url on a client error",
			status:   http.StatusUnprocessableEntity,
			body:     `garment rejected: https://cdn.example.com/in/garment.jpg`,
			cdn:      cdn,
			wantKind: OutcomeParseError,
		},
		{
			name:     "json without image url",
			status:   http.StatusOK,
			body:     `{"status":"queued"}`,
			cdn:      cdn,
			wantKind: OutcomeParseError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyImageResponse(tt.status, []byte(tt.body), tt.hadBackground, tt.cdn)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.ImageURL != tt.wantURL {
				t.Fatalf("url = %q, want %q", got.ImageURL, tt.wantURL)
			}
			if got.Recovered != tt.wantRecovered {
				t.Fatalf("recovered = %v, want %v", got.Recovered, tt.wantRecovered)
			}
			if got.Message() == "" {
				t.Fatalf("empty message")
			}
		})
	}
}

func TestClassifyParseErrorCarriesSnippet(t *testing.T) {
	body := strings.Repeat("x", 500)
	got := ClassifyImageResponse(http.StatusOK, []byte(body), false, nil)
	if got.Kind != OutcomeParseError {
		t.Fatalf("kind = %s", got.Kind)
	}
	if !strings.HasPrefix(got.Snippet, "xxxx") || len([]rune(got.Snippet)) != snippetRunes+1 {
		t.Fatalf("snippet not truncated: %d runes", len([]rune(got.Snippet)))
	}
	if !strings.Contains(got.Message(), got.Snippet) {
		t.Fatalf("message should include the snippet")
	}
}

func TestTransportOutcome(t *testing.T) {
	if got := TransportOutcome(context.DeadlineExceeded, false); got.Kind != OutcomeTimeoutError {
		t.Fatalf("deadline: %s", got.Kind)
	}
	if got := TransportOutcome(errors.New("boom"), true); got.Kind != OutcomeTimeoutError {
		t.Fatalf("timed out flag: %s", got.Kind)
	}
	got := TransportOutcome(errors.New("connection refused"), false)
	if got.Kind != OutcomeNetworkError || !strings.Contains(got.Message(), "connection refused") {
		t.Fatalf("network: %s %q", got.Kind, got.Message())
	}
}

func TestParseVideoResponse(t *testing.T) {
	url, err := ParseVideoResponse(http.StatusOK, []byte(`{"video_url":"https://cdn.example.com/v.mp4"}`))
	if err != nil || url != "https://cdn.example.com/v.mp4" {
		t.Fatalf("got (%q, %v)", url, err)
	}
	for _, tc := range []struct {
		status int
		body   string
	}{
		{http.StatusOK, "https://cdn.example.com/v.png"},
		{http.StatusOK, `{"image_url":"x"}`},
		{http.StatusInternalServerError, "Internal Server Error"},
	} {
		if _, err := ParseVideoResponse(tc.status, []byte(tc.body)); !errors.Is(err, ErrVideoFailed) {
			t.Fatalf("status %d body %q: err = %v, want ErrVideoFailed", tc.status, tc.body, err)
		}
	}
}

func TestCompileCDNPattern(t *testing.T) {
	re, err := CompileCDNPattern("")
	if err != nil || re.String() != DefaultCDNPattern {
		t.Fatalf("default pattern: %v", err)
	}
	if _, err := CompileCDNPattern("(unclosed"); err == nil {
		t.Fatalf("expected compile error")
	}
}
