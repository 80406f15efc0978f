package zapier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bigl34/zapctl/internal/config"
)

// Headers that make the request indistinguishable from the web client's own
// XHR traffic. The internal API serves browser sessions, not API clients;
// anything that looks like a script gets a different answer.
const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	maxResponseBody = 10 << 20
)

// CookieSource supplies the current browser session's Cookie header. The
// APIClient never refreshes the session itself; callers establish login
// before issuing requests.
type CookieSource interface {
	CookieHeader(ctx context.Context) (string, error)
}

// APIClient is the primary execution path: plain HTTP against the vendor's
// internal API, authenticated with cookies borrowed from the live browser
// session. Requests are paced so a burst of CLI activity does not stand out
// from organic traffic.
type APIClient struct {
	hc      *http.Client
	limiter *rate.Limiter
	cookies CookieSource
	referer string
	logger  *zap.Logger
}

func NewAPIClient(cookies CookieSource, cfg *config.Config, logger *zap.Logger) *APIClient {
	return &APIClient{
		hc: &http.Client{
			Transport: newDecompressTransport(nil),
			Timeout:   cfg.Network.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.Network.RequestsPerSecond), 1),
		cookies: cookies,
		referer: cfg.Zapier.BaseURL + "/app/dashboard",
		logger:  logger.Named("api"),
	}
}

// Do issues one paced request and returns the status code and body. A
// non-2xx status is not an error here; classification belongs to the
// executor.
func (c *APIClient) Do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}

	cookieHeader, err := c.cookies.CookieHeader(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("collecting session cookies: %w", err)
	}
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", c.referer)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	c.logger.Debug("api request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, payload, nil
}
