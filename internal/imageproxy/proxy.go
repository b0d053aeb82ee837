// Package imageproxy fetches remote product images on behalf of the shop so
// browsers and the fitting form only ever load images from the shop's origin.
package imageproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

const (
	DefaultMaxBytes int64 = 15 << 20
	defaultTimeout        = 20 * time.Second
	maxRedirects          = 5
)

var (
	ErrInvalidURL     = errors.New("imageproxy: invalid url")
	ErrHostNotAllowed = errors.New("imageproxy: host not allowed")
	ErrNotImage       = errors.New("imageproxy: upstream is not an image")
	ErrTooLarge       = errors.New("imageproxy: image exceeds size limit")
	ErrUpstream       = errors.New("imageproxy: upstream request failed")
)

// Options configures a Proxy.
type Options struct {
	AllowedHosts []string
	MaxBytes     int64
	RPS          float64
	Burst        int
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Proxy downloads images from allow-listed hosts with outbound pacing.
type Proxy struct {
	exact    map[string]struct{}
	suffixes []string
	maxBytes int64
	limiter  *rate.Limiter
	client   *http.Client
	logger   *infra.Logger
}

// Image is a fetched upstream image.
type Image struct {
	ContentType string
	Data        []byte
}

// New builds a proxy. Entries of AllowedHosts starting with "." or "*."
// match every subdomain; other entries match the host exactly.
func New(opts Options) *Proxy {
	p := &Proxy{
		exact:    make(map[string]struct{}),
		maxBytes: opts.MaxBytes,
		logger:   opts.Logger,
	}
	for _, h := range opts.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasPrefix(h, "*."):
			p.suffixes = append(p.suffixes, h[1:])
		case strings.HasPrefix(h, "."):
			p.suffixes = append(p.suffixes, h)
		default:
			p.exact[h] = struct{}{}
		}
	}
	p.suffixes = lo.Uniq(p.suffixes)
	if p.maxBytes <= 0 {
		p.maxBytes = DefaultMaxBytes
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	p.limiter = rate.NewLimiter(limit, burst)
	client := http.Client{Timeout: defaultTimeout}
	if opts.HTTPClient != nil {
		client = *opts.HTTPClient
	}
	client.CheckRedirect = p.checkRedirect
	p.client = &client
	if p.logger == nil {
		p.logger = infra.DiscardLogger()
	}
	return p
}

// Allowed reports whether hostname (without port) may be fetched.
func (p *Proxy) Allowed(hostname string) bool {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if host == "" {
		return false
	}
	if _, ok := p.exact[host]; ok {
		return true
	}
	return lo.SomeBy(p.suffixes, func(suffix string) bool {
		return strings.HasSuffix(host, suffix)
	})
}

// Get downloads rawURL after checking it against the allow-list.
func (p *Proxy) Get(ctx context.Context, rawURL string) (*Image, error) {
	target, err := p.parse(rawURL)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("imageproxy: wait for outbound slot: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) || errors.Is(err, ErrInvalidURL) {
			return nil, err
		}
		p.logger.Warn().Err(err).Str("host", target.Host).Msg("imageproxy: upstream unreachable")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn().Int("status", resp.StatusCode).Str("host", target.Host).Msg("imageproxy: upstream rejected request")
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if resp.ContentLength > p.maxBytes {
		return nil, ErrTooLarge
	}
	contentType := mediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, lo.CoalesceOrEmpty(contentType, "unknown"))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, ErrTooLarge
	}
	p.logger.Debug().
		Str("host", target.Host).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("imageproxy: fetched")
	return &Image{ContentType: contentType, Data: data}, nil
}

// Fetch implements fitting.ImageFetcher for server-side seeding.
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*fitting.File, error) {
	img, err := p.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	name := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			name = base
		}
	}
	return &fitting.File{Name: name, MIME: img.ContentType, Data: img.Data}, nil
}

// checkRedirect holds every hop to the same rules as the first request.
func (p *Proxy) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d redirects", ErrUpstream, maxRedirects)
	}
	if _, err := p.parse(req.URL.String()); err != nil {
		p.logger.Warn().Err(err).Str("from", via[len(via)-1].URL.Host).Msg("imageproxy: redirect refused")
		return err
	}
	return nil
}

func (p *Proxy) parse(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials are not allowed", ErrInvalidURL)
	}
	if !p.Allowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return strings.ToLower(mt)
}

// StatusFor maps a Get error to the HTTP status the proxy endpoint answers with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, ErrHostNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNotImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

var _ fitting.ImageFetcher = (*Proxy)(nil)
