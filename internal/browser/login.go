package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/store"
	"github.com/bigl34/zapctl/internal/zapier"
)

// Candidate selectors for the vendor's login form. The markup has churned
// repeatedly; each list is ordered from most recently observed to oldest.
var (
	emailSelectors = []string{
		`input[type="email"]`,
		`input[name="email"]`,
		`input[autocomplete="username"]`,
		`#login-email`,
	}
	passwordSelectors = []string{
		`input[type="password"]`,
		`input[name="password"]`,
		`input[autocomplete="current-password"]`,
		`#login-password`,
	}
	consentSelectors = []string{
		`#onetrust-accept-btn-handler`,
		`button[data-testid="cookie-accept-all"]`,
	}
	continueLabels = []string{"Continue", "Next"}
	submitLabels   = []string{"Log in", "Sign in", "Login", "Continue"}
)

// EnsureLoggedIn guarantees an authenticated browser session, probing first
// and running the interactive login flow only when the probe says the
// current session is not accepted.
func (c *Controller) EnsureLoggedIn(ctx context.Context) error {
	// Credential presence is a configuration question; fail it before any
	// browser work happens.
	email, password, err := c.cfg.Credentials()
	if err != nil {
		return err
	}

	if err := c.EnsureReady(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	alreadyIn := c.loggedIn
	c.mu.Unlock()
	if alreadyIn {
		return nil
	}

	if err := c.ensureOnOrigin(ctx); err != nil {
		return err
	}

	status, err := c.probeSession(ctx)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		c.logger.Debug("existing session accepted", zap.Int("status", status))
		c.mu.Lock()
		c.loggedIn = true
		c.mu.Unlock()
		return nil
	}
	c.logger.Info("no valid session, logging in", zap.Int("probe_status", status))

	if err := c.login(ctx, email, password); err != nil {
		return err
	}

	if err := c.persistSession(ctx); err != nil {
		c.logger.Warn("failed to persist session snapshot", zap.Error(err))
	}
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

// ensureOnOrigin makes sure the page is on the vendor origin so same-origin
// fetches and localStorage access work, and replays any saved localStorage
// once per attachment.
func (c *Controller) ensureOnOrigin(ctx context.Context) error {
	base := c.cfg.Zapier.BaseURL
	loc, err := c.CurrentURL(ctx)
	if err != nil || !strings.HasPrefix(loc, base) {
		if err := c.Navigate(ctx, base+"/app/dashboard"); err != nil {
			return err
		}
	}

	c.mu.Lock()
	restored := c.storageRestored
	c.storageRestored = true
	c.mu.Unlock()
	if restored {
		return nil
	}
	state, err := c.store.LoadState()
	if err != nil || state == nil || len(state.LocalStorage) == 0 {
		return nil
	}
	if err := c.restoreLocalStorage(ctx, state.LocalStorage); err != nil {
		c.logger.Warn("failed to restore localStorage", zap.Error(err))
	}
	return nil
}

// probeSession asks the page itself whether the session is valid by fetching
// the account endpoint with the page's own cookie jar. 0 means the fetch
// did not complete.
func (c *Controller) probeSession(ctx context.Context) (int, error) {
	script := fmt.Sprintf(
		`fetch(%q, {credentials: "include"}).then(r => r.status).catch(() => 0)`,
		c.cfg.Zapier.BaseURL+zapier.ProbePath)
	var status int
	if err := c.evalPromise(ctx, c.cfg.Network.ProbeTimeout, script, &status); err != nil {
		return 0, fmt.Errorf("session probe failed: %w", err)
	}
	return status, nil
}

func (c *Controller) login(ctx context.Context, email, password string) error {
	if err := c.Navigate(ctx, c.cfg.Zapier.BaseURL+zapier.LoginPath); err != nil {
		return err
	}
	c.dismissCookieBanner(ctx)

	emailSel, err := c.FindFirst(ctx, emailSelectors, 10*time.Second)
	if err != nil {
		return err
	}
	if emailSel == "" {
		return c.loginObstacle(ctx, "email field")
	}
	if err := c.typeInto(ctx, emailSel, email); err != nil {
		return err
	}
	if err := c.advance(ctx, emailSel, continueLabels); err != nil {
		return err
	}

	passwordSel, err := c.FindFirst(ctx, passwordSelectors, 10*time.Second)
	if err != nil {
		return err
	}
	if passwordSel == "" {
		return c.loginObstacle(ctx, "password field")
	}
	if err := c.typeInto(ctx, passwordSel, password); err != nil {
		return err
	}
	if err := c.advance(ctx, passwordSel, submitLabels); err != nil {
		return err
	}

	return c.awaitLogin(ctx)
}

// advance clicks the first matching submit-style button, or presses Enter in
// the given field when no recognizable button exists.
func (c *Controller) advance(ctx context.Context, fieldSel string, labels []string) error {
	matched, err := c.ClickByText(ctx, labels, 3*time.Second)
	if err != nil {
		return err
	}
	if matched != "" {
		return nil
	}
	c.logger.Debug("no submit button matched, sending Enter", zap.String("field", fieldSel))
	return c.run(ctx, c.cfg.Network.RequestTimeout,
		kbSend(fieldSel, kb.Enter))
}

// awaitLogin polls until the session probe accepts, a challenge appears, or
// the login window closes.
func (c *Controller) awaitLogin(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.Network.LoginTimeout)
	for {
		status, err := c.probeSession(ctx)
		if err == nil && status >= 200 && status < 300 {
			c.logger.Info("login succeeded")
			return nil
		}

		text, err := c.bodyText(ctx)
		if err == nil {
			if kind, ok := classifyChallenge(text); ok {
				return c.handleChallenge(ctx, kind)
			}
		}

		if !time.Now().Before(deadline) {
			shot, _ := c.Screenshot(ctx, "login-timeout")
			return &zapier.LoginError{
				Reason:     fmt.Sprintf("no authenticated session after %s", c.cfg.Network.LoginTimeout),
				Screenshot: shot,
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// handleChallenge gives an interactive user the chance to solve the
// challenge in the visible window; headless runs fail immediately with a
// screenshot of what blocked them.
func (c *Controller) handleChallenge(ctx context.Context, kind zapier.ChallengeKind) error {
	if !c.cfg.Browser.Interactive {
		shot, _ := c.Screenshot(ctx, "challenge-"+string(kind))
		return &zapier.ChallengeError{Kind: kind, Screenshot: shot}
	}

	c.logger.Warn("login challenge detected, waiting for it to be solved in the browser window",
		zap.String("kind", string(kind)),
		zap.Duration("window", c.cfg.Network.ChallengeTimeout))
	ok, err := pollUntil(ctx, c.cfg.Network.ChallengeTimeout, 2*time.Second, func() (bool, error) {
		status, err := c.probeSession(ctx)
		if err != nil {
			return false, nil
		}
		return status >= 200 && status < 300, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		shot, _ := c.Screenshot(ctx, "challenge-"+string(kind))
		return &zapier.ChallengeError{Kind: kind, Screenshot: shot}
	}
	c.logger.Info("challenge solved, login succeeded")
	return nil
}

func (c *Controller) loginObstacle(ctx context.Context, what string) error {
	if text, err := c.bodyText(ctx); err == nil {
		if kind, ok := classifyChallenge(text); ok {
			return c.handleChallenge(ctx, kind)
		}
	}
	shot, _ := c.Screenshot(ctx, "login-missing-element")
	return &zapier.ElementNotFoundError{What: what, Screenshot: shot}
}

func (c *Controller) dismissCookieBanner(ctx context.Context) {
	sel, err := c.FindFirst(ctx, consentSelectors, 2*time.Second)
	if err != nil || sel == "" {
		return
	}
	if err := c.Click(ctx, sel); err != nil {
		c.logger.Debug("failed to dismiss cookie banner", zap.Error(err))
	}
}

// persistSession snapshots cookies and localStorage for reuse by later
// invocations.
func (c *Controller) persistSession(ctx context.Context) error {
	cookies, err := c.cookies(ctx)
	if err != nil {
		return err
	}
	saved := make([]store.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		saved = append(saved, store.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  ck.Expires,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}

	var local map[string]string
	dump := `(() => {
  const out = {};
  for (let i = 0; i < localStorage.length; i++) {
    const k = localStorage.key(i);
    out[k] = localStorage.getItem(k);
  }
  return out;
})()`
	if err := c.run(ctx, c.cfg.Network.RequestTimeout, evalInto(dump, &local)); err != nil {
		c.logger.Debug("failed to capture localStorage", zap.Error(err))
		local = nil
	}

	return c.store.SaveState(&store.State{Cookies: saved, LocalStorage: local})
}

func (c *Controller) restoreLocalStorage(ctx context.Context, items map[string]string) error {
	arg, err := jsonArg(items)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(m => {
  for (const [k, v] of Object.entries(m)) localStorage.setItem(k, v);
})(%s)`, arg)
	return c.run(ctx, c.cfg.Network.RequestTimeout, evalDiscard(script))
}

// Challenge phrases seen on the vendor's login flow. Scanning visible text
// is deliberately loose; selectors for these screens change too often to
// pin down.
var (
	twoFactorPhrases = []string{
		"two-factor", "two factor", "verification code", "authenticator app",
		"enter the code", "2-step", "2fa",
	}
	captchaPhrases = []string{
		"captcha", "recaptcha", "verify you are human", "i'm not a robot",
		"unusual activity",
	}
)

func classifyChallenge(bodyText string) (zapier.ChallengeKind, bool) {
	text := strings.ToLower(bodyText)
	for _, p := range captchaPhrases {
		if strings.Contains(text, p) {
			return zapier.ChallengeCaptcha, true
		}
	}
	for _, p := range twoFactorPhrases {
		if strings.Contains(text, p) {
			return zapier.ChallengeTwoFactor, true
		}
	}
	return "", false
}
