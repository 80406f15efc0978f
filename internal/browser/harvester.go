package browser

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/zapier"
)

// InterceptJSON navigates to pageURL and watches the JSON traffic the page
// generates for itself, returning the body of the first response match
// accepts. A quiet page is not an error: when the interception window
// closes without a match the result is (nil, nil).
func (c *Controller) InterceptJSON(ctx context.Context, pageURL string, match func(zapier.Capture) bool) ([]byte, error) {
	c.mu.Lock()
	pageCtx := c.pageCtx
	c.mu.Unlock()
	if pageCtx == nil {
		return nil, errors.New("browser not ready")
	}

	runCtx, cancel := combineContext(pageCtx, ctx)
	defer cancel()
	runCtx, tcancel := context.WithTimeout(runCtx, c.cfg.Network.InterceptTimeout)
	defer tcancel()

	type meta struct {
		url    string
		status int
	}
	var mu sync.Mutex
	pending := make(map[network.RequestID]meta)
	found := make(chan []byte, 1)

	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if !apiShaped(e.Response.URL) || !strings.Contains(e.Response.MimeType, "json") {
				return
			}
			mu.Lock()
			pending[e.RequestID] = meta{url: e.Response.URL, status: int(e.Response.Status)}
			mu.Unlock()
		case *network.EventLoadingFinished:
			mu.Lock()
			m, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			// The body is only retrievable after loading finished, and
			// fetching it is itself a CDP round trip.
			go func() {
				var body []byte
				err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
					var err error
					body, err = network.GetResponseBody(e.RequestID).Do(ctx)
					return err
				}))
				if err != nil {
					c.logger.Debug("failed to fetch intercepted body",
						zap.String("url", m.url), zap.Error(err))
					return
				}
				if match(zapier.Capture{URL: m.url, Status: m.status, Body: body}) {
					select {
					case found <- body:
					default:
					}
				}
			}()
		}
	})

	if err := chromedp.Run(runCtx, network.Enable(), chromedp.Navigate(pageURL)); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("interception window closed during navigation", zap.String("page", pageURL))
			return nil, nil
		}
		return nil, err
	}

	select {
	case body := <-found:
		return body, nil
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("no matching traffic before the interception window closed",
				zap.String("page", pageURL))
			return nil, nil
		}
		return nil, runCtx.Err()
	}
}

// HarvestAPIRequests loads each page and records every API-shaped request
// the page issued, for endpoint discovery. Results are deduplicated by
// method and URL.
func (c *Controller) HarvestAPIRequests(ctx context.Context, pageURLs []string) ([]zapier.ObservedRequest, error) {
	c.mu.Lock()
	pageCtx := c.pageCtx
	c.mu.Unlock()
	if pageCtx == nil {
		return nil, errors.New("browser not ready")
	}

	var mu sync.Mutex
	seen := make(map[string]*zapier.ObservedRequest)

	for _, pageURL := range pageURLs {
		runCtx, cancel := combineContext(pageCtx, ctx)
		runCtx, tcancel := context.WithTimeout(runCtx, c.cfg.Network.InterceptTimeout)

		byID := make(map[network.RequestID]string)
		chromedp.ListenTarget(runCtx, func(ev interface{}) {
			switch e := ev.(type) {
			case *network.EventRequestWillBeSent:
				if !apiShaped(e.Request.URL) {
					return
				}
				key := e.Request.Method + " " + stripQuery(e.Request.URL)
				mu.Lock()
				if _, ok := seen[key]; !ok {
					seen[key] = &zapier.ObservedRequest{Method: e.Request.Method, URL: stripQuery(e.Request.URL)}
				}
				byID[e.RequestID] = key
				mu.Unlock()
			case *network.EventResponseReceived:
				mu.Lock()
				if key, ok := byID[e.RequestID]; ok {
					if obs := seen[key]; obs != nil {
						obs.Status = int(e.Response.Status)
						obs.Mime = e.Response.MimeType
					}
				}
				mu.Unlock()
			}
		})

		err := chromedp.Run(runCtx,
			network.Enable(),
			chromedp.ActionFunc(func(ctx context.Context) error {
				return page.SetLifecycleEventsEnabled(true).Do(ctx)
			}),
			chromedp.Navigate(pageURL),
		)
		if err == nil {
			c.awaitNetworkIdle(runCtx, c.cfg.Network.InterceptTimeout)
		} else {
			c.logger.Warn("discovery navigation failed", zap.String("page", pageURL), zap.Error(err))
		}
		tcancel()
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	out := make([]zapier.ObservedRequest, 0, len(seen))
	for _, obs := range seen {
		out = append(out, *obs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Method < out[j].Method
	})
	return out, nil
}

// awaitNetworkIdle blocks until the page reports the networkIdle lifecycle
// event or the timeout elapses. Lifecycle events must already be enabled.
func (c *Controller) awaitNetworkIdle(runCtx context.Context, timeout time.Duration) {
	idle := make(chan struct{}, 1)
	lctx, lcancel := context.WithCancel(runCtx)
	defer lcancel()
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})
	select {
	case <-idle:
	case <-time.After(timeout):
	case <-runCtx.Done():
	}
}

// apiShaped reports whether a URL looks like the web client talking to its
// own backend rather than a static asset or third-party beacon.
func apiShaped(rawURL string) bool {
	return strings.Contains(rawURL, "/api/") || strings.Contains(rawURL, "/graphql")
}

func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
