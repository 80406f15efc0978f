package browser

import (
	"context"
	"time"
)

// combineContext returns a context that is canceled as soon as either
// parent is canceled. The page context carries the chromedp target while
// the operation context carries the caller's deadline; CDP actions must
// stop when either one goes away.
func combineContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// pollUntil calls fn every interval until it returns true, the timeout
// elapses, or ctx is canceled. It reports whether fn succeeded.
func pollUntil(ctx context.Context, timeout, interval time.Duration, fn func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := fn()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
}
