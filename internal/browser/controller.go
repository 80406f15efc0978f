package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/config"
	"github.com/bigl34/zapctl/internal/store"
)

const (
	launchWait   = 15 * time.Second
	pollInterval = 250 * time.Millisecond
)

// Controller owns the attached browser. It reattaches to a process left
// behind by a previous invocation when the persisted handle still answers,
// and launches a fresh one otherwise. All CDP traffic for an invocation
// flows through the single page context it holds.
type Controller struct {
	cfg    *config.Config
	store  *store.Store
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	pageCtx     context.Context
	pageCancel  context.CancelFunc

	storageRestored bool
	loggedIn        bool
}

func NewController(cfg *config.Config, st *store.Store, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		store:  st,
		logger: logger.Named("browser"),
	}
}

// EnsureReady guarantees a usable page context. Resolution order: the page
// already held by this invocation, then reattachment via the persisted
// handle, then a fresh launch. A handle that no longer answers is removed
// before falling through.
func (c *Controller) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pageCtx != nil && c.pageCtx.Err() == nil {
		return nil
	}
	c.teardownLocked()

	if h, err := c.store.LoadHandle(); err == nil && h != nil {
		if err := c.connectLocked(ctx, h.DevtoolsURL, c.cfg.Network.ReconnectTimeout); err == nil {
			c.logger.Debug("reattached to running browser",
				zap.String("devtools_url", h.DevtoolsURL),
				zap.Int("pid", h.PID))
			return nil
		} else {
			c.logger.Warn("browser handle is stale, launching fresh", zap.Error(err))
			c.teardownLocked()
			if rmErr := c.store.ClearHandle(); rmErr != nil {
				c.logger.Warn("failed to remove stale handle", zap.Error(rmErr))
			}
		}
	}

	return c.launchLocked(ctx)
}

func (c *Controller) launchLocked(ctx context.Context) error {
	execPath, err := resolveExecPath(c.cfg.Browser.ExecPath)
	if err != nil {
		return err
	}

	port := c.cfg.Browser.DebuggingPort
	args := chromeArgs(c.cfg, port, filepath.Join(c.store.Dir(), "profile"))

	cmd := exec.Command(execPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser %s: %w", execPath, err)
	}
	pid := cmd.Process.Pid
	// Reap the child if it dies; the process is expected to outlive us.
	go func() { _ = cmd.Wait() }()

	devtoolsURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForDevtools(ctx, devtoolsURL, launchWait); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		return fmt.Errorf("browser did not expose devtools on port %d: %w", port, err)
	}

	if err := c.connectLocked(ctx, devtoolsURL, launchWait); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		return err
	}

	if err := c.store.SaveHandle(&store.Handle{
		DevtoolsURL: devtoolsURL,
		PID:         pid,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("failed to persist browser handle", zap.Error(err))
	}

	if err := c.restoreCookiesLocked(ctx); err != nil {
		c.logger.Warn("failed to restore saved cookies", zap.Error(err))
	}

	c.logger.Info("launched browser",
		zap.String("exec_path", execPath),
		zap.Int("pid", pid),
		zap.Bool("headless", !c.cfg.Browser.Interactive))
	return nil
}

func (c *Controller) connectLocked(ctx context.Context, devtoolsURL string, timeout time.Duration) error {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), devtoolsURL)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	probeCtx, cancel := combineContext(pageCtx, ctx)
	defer cancel()
	probeCtx, probeCancel := context.WithTimeout(probeCtx, timeout)
	defer probeCancel()

	if err := chromedp.Run(probeCtx); err != nil {
		pageCancel()
		allocCancel()
		return fmt.Errorf("attaching to %s: %w", devtoolsURL, err)
	}

	// Native confirm() dialogs block the page until answered; accept them
	// so click sequences on confirmation prompts cannot deadlock.
	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(pageCtx, page.HandleJavaScriptDialog(true)); err != nil {
					c.logger.Debug("failed to accept javascript dialog", zap.Error(err))
				}
			}()
		}
	})

	c.allocCancel = allocCancel
	c.pageCtx = pageCtx
	c.pageCancel = pageCancel
	return nil
}

func (c *Controller) teardownLocked() {
	if c.pageCancel != nil {
		c.pageCancel()
		c.pageCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	c.pageCtx = nil
	c.storageRestored = false
	c.loggedIn = false
}

// Close disconnects from the browser without terminating it so the process
// can be reused by the next invocation.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// Reset terminates the attached browser process if one is recorded and
// removes every persisted session artifact. Termination is best effort; a
// process that is already gone is not an error.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, err := c.store.LoadHandle(); err == nil && h != nil && h.PID > 0 {
		if proc, err := os.FindProcess(h.PID); err == nil {
			if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				c.logger.Debug("browser process already gone", zap.Int("pid", h.PID), zap.Error(err))
			} else {
				c.logger.Info("terminated browser process", zap.Int("pid", h.PID))
			}
		}
	}
	c.teardownLocked()
	return c.store.Clear()
}

// Invalidate discards persisted session artifacts after the server rejected
// them. The browser stays up; the next login-requiring operation goes
// through the full login flow again.
func (c *Controller) Invalidate() error {
	c.mu.Lock()
	c.loggedIn = false
	c.storageRestored = false
	c.mu.Unlock()
	return c.store.Clear()
}

// run executes CDP actions against the held page, bounded by both the
// caller's context and the given timeout.
func (c *Controller) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	c.mu.Lock()
	pageCtx := c.pageCtx
	c.mu.Unlock()
	if pageCtx == nil {
		return errors.New("browser not ready")
	}

	runCtx, cancel := combineContext(pageCtx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the held page and waits for the document to become
// interactive.
func (c *Controller) Navigate(ctx context.Context, pageURL string) error {
	err := c.run(ctx, c.cfg.Network.NavigationTimeout,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", pageURL, err)
	}
	return nil
}

func (c *Controller) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, c.cfg.Network.RequestTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// CookieHeader serializes the browser's cookies for the configured origin
// into a Cookie request header value.
func (c *Controller) CookieHeader(ctx context.Context) (string, error) {
	cookies, err := c.cookies(ctx)
	if err != nil {
		return "", err
	}
	host := baseHost(c.cfg.Zapier.BaseURL)
	var b strings.Builder
	for _, ck := range cookies {
		if !domainMatches(ck.Domain, host) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ck.Name)
		b.WriteByte('=')
		b.WriteString(ck.Value)
	}
	return b.String(), nil
}

func (c *Controller) cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, c.cfg.Network.RequestTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

func (c *Controller) restoreCookiesLocked(ctx context.Context) error {
	state, err := c.store.LoadState()
	if err != nil || state == nil || len(state.Cookies) == 0 {
		return err
	}
	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, ck := range state.Cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
			SameSite: network.CookieSameSite(ck.SameSite),
		}
		if ck.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}

	pageCtx := c.pageCtx
	runCtx, cancel := combineContext(pageCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	})); err != nil {
		return err
	}
	c.logger.Debug("restored saved cookies", zap.Int("count", len(params)))
	return nil
}

func resolveExecPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	for _, name := range []string{
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome",
	} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no chrome or chromium binary found; set browser.exec_path")
}

func chromeArgs(cfg *config.Config, port int, profileDir string) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--user-data-dir=" + profileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
		"--disable-blink-features=AutomationControlled",
		"--window-size=1440,900",
	}
	if !cfg.Browser.Interactive {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	return append(args, cfg.Browser.Args...)
}

func waitForDevtools(ctx context.Context, devtoolsURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	ok, err := pollUntil(ctx, timeout, pollInterval, func() (bool, error) {
		resp, err := client.Get(devtoolsURL + "/json/version")
		if err != nil {
			return false, nil
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("devtools endpoint not responding after %s", timeout)
	}
	return nil
}

func baseHost(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Hostname()
}

func domainMatches(cookieDomain, host string) bool {
	d := strings.TrimPrefix(cookieDomain, ".")
	return d == host || strings.HasSuffix(host, "."+d) || strings.HasSuffix(d, "."+host)
}
