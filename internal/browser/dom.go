package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// FindFirst polls the page for up to wait and returns the first selector in
// the candidate list that matches a visible element. It returns "" without
// an error when nothing matched; page markup changing underneath us is an
// expected condition, not a failure.
func (c *Controller) FindFirst(ctx context.Context, selectors []string, wait time.Duration) (string, error) {
	script, err := firstVisibleScript(selectors)
	if err != nil {
		return "", err
	}
	var matched string
	_, err = pollUntil(ctx, wait, pollInterval, func() (bool, error) {
		matched = ""
		if err := c.run(ctx, c.cfg.Network.RequestTimeout, chromedp.Evaluate(script, &matched)); err != nil {
			return false, err
		}
		return matched != "", nil
	})
	return matched, err
}

// Click scrolls the element into view and dispatches a real mouse click.
func (c *Controller) Click(ctx context.Context, selector string) error {
	err := c.run(ctx, c.cfg.Network.RequestTimeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// ClickByText clicks the first button-like element whose visible label
// matches one of the given labels, polling for up to wait. It returns the
// matched label, or "" when no such control appeared.
func (c *Controller) ClickByText(ctx context.Context, labels []string, wait time.Duration) (string, error) {
	script, err := clickByTextScript(labels)
	if err != nil {
		return "", err
	}
	var matched string
	_, err = pollUntil(ctx, wait, pollInterval, func() (bool, error) {
		matched = ""
		if err := c.run(ctx, c.cfg.Network.RequestTimeout, chromedp.Evaluate(script, &matched)); err != nil {
			return false, err
		}
		return matched != "", nil
	})
	return matched, err
}

func (c *Controller) typeInto(ctx context.Context, selector, value string) error {
	err := c.run(ctx, c.cfg.Network.RequestTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into %q: %w", selector, err)
	}
	return nil
}

// evalPromise evaluates script in the page and waits for the resulting
// promise to settle before decoding its value into out.
func (c *Controller) evalPromise(ctx context.Context, timeout time.Duration, script string, out any) error {
	return c.run(ctx, timeout, chromedp.Evaluate(script, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

func (c *Controller) bodyText(ctx context.Context) (string, error) {
	var text string
	err := c.run(ctx, c.cfg.Network.RequestTimeout,
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

func kbSend(selector, keys string) chromedp.Action {
	return chromedp.SendKeys(selector, keys, chromedp.ByQuery)
}

func evalInto(script string, out any) chromedp.Action {
	return chromedp.Evaluate(script, out)
}

func evalDiscard(script string) chromedp.Action {
	return chromedp.Evaluate(script, nil)
}

func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func firstVisibleScript(selectors []string) (string, error) {
	arg, err := json.Marshal(selectors)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(sels => {
  const visible = el => !!el && (el.offsetParent !== null || el.getClientRects().length > 0);
  for (const sel of sels) {
    let el;
    try { el = document.querySelector(sel); } catch (e) { continue; }
    if (visible(el)) return sel;
  }
  return "";
})(%s)`, arg), nil
}

func clickByTextScript(labels []string) (string, error) {
	arg, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(labels => {
  const norm = s => (s || "").trim().toLowerCase();
  const nodes = document.querySelectorAll('button, a, [role="button"], input[type="submit"]');
  for (const label of labels) {
    const want = norm(label);
    for (const el of nodes) {
      const text = norm(el.innerText || el.value || el.getAttribute("aria-label"));
      if (!text) continue;
      if (text === want || text.startsWith(want)) {
        el.click();
        return label;
      }
    }
  }
  return "";
})(%s)`, arg), nil
}
