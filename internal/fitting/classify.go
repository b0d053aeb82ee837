package fitting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ServerFaultMarker is the bare body the workflow service returns when its
// pipeline crashes.
const ServerFaultMarker = "Internal Server Error"

// DefaultCDNPattern matches the image URLs the workflow service embeds in its
// responses. It is used to salvage a result from malformed bodies.
const DefaultCDNPattern = `https?://[^\s"'<>\\]+\.(?:png|jpe?g|webp)(?:\?[^\s"'<>\\]*)?`

const snippetRunes = 200

// OutcomeKind tags the result of one image-generation call.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeMissingSlots
	OutcomeBackgroundError
	OutcomeServerError
	OutcomeMinimumBodyError
	OutcomeHTMLError
	OutcomeParseError
	OutcomeNetworkError
	OutcomeTimeoutError
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeSuccess:          "success",
	OutcomeMissingSlots:     "missing_slots",
	OutcomeBackgroundError:  "background_error",
	OutcomeServerError:      "server_error",
	OutcomeMinimumBodyError: "minimum_body_error",
	OutcomeHTMLError:        "html_error",
	OutcomeParseError:       "parse_error",
	OutcomeNetworkError:     "network_error",
	OutcomeTimeoutError:     "timeout_error",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the classified result of a GenerateImage call. Only the fields
// relevant to Kind are set.
type Outcome struct {
	Kind      OutcomeKind
	ImageURL  string
	Recovered bool
	Snippet   string
	Cause     error
}

// Succeeded reports whether the call produced an image URL.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess && o.ImageURL != ""
}

// Message renders the user-facing status text.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "Image generated."
	case OutcomeMissingSlots:
		return "Please add both a person photo and a garment photo before generating."
	case OutcomeBackgroundError:
		return "The background image could not be processed. Try another background or generate without one."
	case OutcomeServerError:
		return "The fitting service hit an internal error. Please try again in a moment."
	case OutcomeMinimumBodyError:
		return "The person photo must show at least the upper body."
	case OutcomeHTMLError:
		return "The fitting service returned an unexpected HTML response."
	case OutcomeParseError:
		return "Could not read the fitting service response: " + o.Snippet
	case OutcomeTimeoutError:
		return "The fitting request timed out. Please try again."
	case OutcomeNetworkError:
		if o.Cause != nil {
			return "Network error while contacting the fitting service: " + o.Cause.Error()
		}
		return "Network error while contacting the fitting service."
	}
	return "Image generation failed."
}

type imageResponse struct {
	ImageURL string `json:"image_url"`
}

type videoResponse struct {
	VideoURL string `json:"video_url"`
}

// ClassifyImageResponse interprets a raw workflow response. The checks run in a
// fixed priority: server-fault sentinel, structured body, CDN URL recovery,
// then heuristics on the failed body. Only a 2xx response can yield an image;
// error bodies that echo an input URL are not results. A nil cdn disables
// recovery.
func ClassifyImageResponse(status int, body []byte, hadBackground bool, cdn *regexp.Regexp) Outcome {
	text := strings.TrimSpace(string(body))
	hasMarker := strings.Contains(text, ServerFaultMarker)
	ok := status >= 200 && status < 300

	if status == http.StatusInternalServerError && hasMarker {
		if hadBackground {
			return Outcome{Kind: OutcomeBackgroundError}
		}
		return Outcome{Kind: OutcomeServerError}
	}

	var decoded imageResponse
	if err := json.Unmarshal(body, &decoded); ok && err == nil {
		if u := strings.TrimSpace(decoded.ImageURL); u != "" {
			return Outcome{Kind: OutcomeSuccess, ImageURL: u}
		}
	}

	if ok && cdn != nil {
		if u := cdn.FindString(text); u != "" {
			return Outcome{Kind: OutcomeSuccess, ImageURL: u, Recovered: true}
		}
	}

	switch {
	case looksLikeHTML(text):
		return Outcome{Kind: OutcomeHTMLError}
	case hasMarker:
		return Outcome{Kind: OutcomeMinimumBodyError}
	}
	return Outcome{Kind: OutcomeParseError, Snippet: Snippet(text)}
}

// ParseVideoResponse extracts video_url from a chained video response. Every
// failure wraps ErrVideoFailed.
func ParseVideoResponse(status int, body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrVideoFailed, status, Snippet(text))
	}
	var decoded videoResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: %s", ErrVideoFailed, Snippet(text))
	}
	u := strings.TrimSpace(decoded.VideoURL)
	if u == "" {
		return "", fmt.Errorf("%w: response has no video_url", ErrVideoFailed)
	}
	return u, nil
}

// TransportOutcome classifies an error raised around the HTTP call itself.
func TransportOutcome(err error, timedOut bool) Outcome {
	if timedOut || errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTimeoutError, Cause: err}
	}
	return Outcome{Kind: OutcomeNetworkError, Cause: err}
}

// Snippet truncates text for diagnostics.
func Snippet(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetRunes]) + "…"
}

func looksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, "<!doctype html") ||
		strings.HasPrefix(lower, "<html") ||
		strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body")
}

// CompileCDNPattern compiles a configured recovery pattern, falling back to
// DefaultCDNPattern when empty.
func CompileCDNPattern(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultCDNPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("fitting: compile cdn pattern: %w", err)
	}
	return re, nil
}
