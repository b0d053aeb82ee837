package fitting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

const (
	// DefaultTimeout bounds an image call without a background.
	DefaultTimeout = 60 * time.Second
	// DefaultBackgroundTimeout bounds an image call with a background attached,
	// which the workflow service takes noticeably longer to compose.
	DefaultBackgroundTimeout = 120 * time.Second
	// DefaultVideoTimeout bounds a video call.
	DefaultVideoTimeout = 120 * time.Second

	maxResponseBytes = 4 << 20
)

// Invoker is the remote side of a fitting run.
type Invoker interface {
	GenerateImage(ctx context.Context, req WorkflowRequest) Outcome
	GenerateVideo(ctx context.Context, imageURL, connectionInfo string) (string, error)
}

// ClientOptions configures the workflow client.
type ClientOptions struct {
	WorkflowURL       string
	VideoURL          string
	HTTPClient        *http.Client
	Timeout           time.Duration
	BackgroundTimeout time.Duration
	VideoTimeout      time.Duration
	CDNPattern        *regexp.Regexp
	Logger            *infra.Logger
}

// Client talks to the fitting workflow service.
type Client struct {
	workflowURL       string
	videoURL          string
	httpClient        *http.Client
	timeout           time.Duration
	backgroundTimeout time.Duration
	videoTimeout      time.Duration
	cdn               *regexp.Regexp
	logger            *infra.Logger
}

// NewClient constructs a client. Timeouts are enforced per call through the
// request context, so the HTTP client itself carries none.
func NewClient(opts ClientOptions) (*Client, error) {
	workflowURL := strings.TrimSpace(opts.WorkflowURL)
	if workflowURL == "" {
		return nil, errors.New("fitting: workflow url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bgTimeout := opts.BackgroundTimeout
	if bgTimeout <= 0 {
		bgTimeout = DefaultBackgroundTimeout
	}
	videoTimeout := opts.VideoTimeout
	if videoTimeout <= 0 {
		videoTimeout = DefaultVideoTimeout
	}
	cdn := opts.CDNPattern
	if cdn == nil {
		cdn = regexp.MustCompile(DefaultCDNPattern)
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		workflowURL:       workflowURL,
		videoURL:          strings.TrimSpace(opts.VideoURL),
		httpClient:        httpClient,
		timeout:           timeout,
		backgroundTimeout: bgTimeout,
		videoTimeout:      videoTimeout,
		cdn:               cdn,
		logger:            logger,
	}, nil
}

// TimeoutFor returns the abort bound applied to req.
func (c *Client) TimeoutFor(req WorkflowRequest) time.Duration {
	if req.HasBackground() {
		return c.backgroundTimeout
	}
	return c.timeout
}

// GenerateImage submits one fitting request and classifies the response. It
// never returns a raw error: every failure is folded into the Outcome.
func (c *Client) GenerateImage(ctx context.Context, req WorkflowRequest) Outcome {
	if err := req.Validate(); err != nil {
		return Outcome{Kind: OutcomeMissingSlots, Cause: err}
	}

	body, contentType, err := encodeWorkflowRequest(req)
	if err != nil {
		return Outcome{Kind: OutcomeNetworkError, Cause: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.TimeoutFor(req))
	defer cancel()

	start := time.Now()
	status, raw, err := c.post(callCtx, c.workflowURL, body, contentType)
	if err != nil {
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		out := TransportOutcome(err, timedOut)
		c.logger.Warn().
			Err(err).
			Str("connection_info", req.ConnectionInfo).
			Str("outcome", out.Kind.String()).
			Dur("elapsed", time.Since(start)).
			Msg("fitting: workflow call failed")
		return out
	}

	out := ClassifyImageResponse(status, raw, req.HasBackground(), c.cdn)
	ev := c.logger.Debug()
	if !out.Succeeded() {
		ev = c.logger.Warn().Str("snippet", Snippet(string(raw)))
	}
	ev.Int("status", status).
		Str("connection_info", req.ConnectionInfo).
		Str("outcome", out.Kind.String()).
		Bool("recovered", out.Recovered).
		Dur("elapsed", time.Since(start)).
		Msg("fitting: workflow response")
	return out
}

// GenerateVideo turns a generated image into a short video. Every failure is
// wrapped with ErrVideoFailed.
func (c *Client) GenerateVideo(ctx context.Context, imageURL, connectionInfo string) (string, error) {
	if c.videoURL == "" {
		return "", fmt.Errorf("%w: video endpoint is not configured", ErrVideoFailed)
	}
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return "", fmt.Errorf("%w: image url is required", ErrVideoFailed)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("image_url", imageURL); err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrVideoFailed, err)
	}
	if err := mw.WriteField("connection_info", connectionInfo); err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrVideoFailed, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrVideoFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.videoTimeout)
	defer cancel()

	status, raw, err := c.post(callCtx, c.videoURL, buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		c.logger.Warn().Err(err).Str("connection_info", connectionInfo).Msg("fitting: video call failed")
		return "", fmt.Errorf("%w: %v", ErrVideoFailed, err)
	}
	videoURL, err := ParseVideoResponse(status, raw)
	if err != nil {
		c.logger.Warn().Err(err).Int("status", status).Str("connection_info", connectionInfo).Msg("fitting: video response rejected")
		return "", err
	}
	c.logger.Debug().Str("connection_info", connectionInfo).Str("video_url", videoURL).Msg("fitting: video generated")
	return videoURL, nil
}

// post sends body and reads the whole response as raw bytes before any
// parsing happens.
func (c *Client) post(ctx context.Context, endpoint string, body []byte, contentType string) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("fitting: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("fitting: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("fitting: read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func encodeWorkflowRequest(req WorkflowRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	files := req.files()
	for _, slot := range Slots {
		file := files[slot]
		if file == nil {
			continue
		}
		if err := writeFilePart(mw, slot.FieldName(), file); err != nil {
			return nil, "", err
		}
	}
	if err := mw.WriteField("connection_info", req.ConnectionInfo); err != nil {
		return nil, "", fmt.Errorf("fitting: encode connection_info: %w", err)
	}
	if err := mw.WriteField("is_pro", strconv.FormatBool(req.ProMode)); err != nil {
		return nil, "", fmt.Errorf("fitting: encode is_pro: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("fitting: close multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func writeFilePart(mw *multipart.Writer, field string, file *File) error {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = field
	}
	mime := normalizeMIME(file.MIME)
	if mime == "" {
		mime = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("fitting: create %s part: %w", field, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("fitting: write %s part: %w", field, err)
	}
	return nil
}
