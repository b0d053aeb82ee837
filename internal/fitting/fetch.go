package fitting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultProxyPath is the shop's same-origin image proxy route.
const DefaultProxyPath = "/v1/image-proxy"

const maxFetchBytes = 20 << 20

// ProxyFetcher downloads images for seeding. URLs on the shop's own origin are
// fetched directly; cross-origin URLs go through the same-origin proxy so the
// caller never depends on the remote host's CORS or hotlink rules.
type ProxyFetcher struct {
	Origin     string
	ProxyPath  string
	HTTPClient *http.Client
}

// NewProxyFetcher returns a fetcher bound to origin (scheme://host[:port]).
func NewProxyFetcher(origin string, client *http.Client) *ProxyFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ProxyFetcher{
		Origin:     strings.TrimRight(origin, "/"),
		ProxyPath:  DefaultProxyPath,
		HTTPClient: client,
	}
}

// Fetch implements ImageFetcher.
func (p *ProxyFetcher) Fetch(ctx context.Context, rawURL string) (*File, error) {
	target, err := p.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fitting: build fetch request: %w", err)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fitting: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fitting: fetch image: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fitting: read image: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, errors.New("fitting: fetched image exceeds size limit")
	}
	mime := normalizeMIME(resp.Header.Get("Content-Type"))
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return &File{Name: fileNameFromURL(rawURL), MIME: mime, Data: data}, nil
}

func (p *ProxyFetcher) resolve(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("fitting: image url is required")
	}
	origin, err := url.Parse(p.Origin)
	if err != nil || origin.Host == "" {
		return "", fmt.Errorf("fitting: invalid origin %q", p.Origin)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fitting: invalid image url: %w", err)
	}
	if !u.IsAbs() {
		return origin.ResolveReference(u).String(), nil
	}
	if strings.EqualFold(u.Host, origin.Host) {
		return u.String(), nil
	}
	proxyPath := p.ProxyPath
	if proxyPath == "" {
		proxyPath = DefaultProxyPath
	}
	proxied := origin.ResolveReference(&url.URL{Path: proxyPath})
	proxied.RawQuery = url.Values{"url": {u.String()}}.Encode()
	return proxied.String(), nil
}

func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
