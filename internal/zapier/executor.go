package zapier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/config"
)

// Session is the authenticated browser surface the executor drives. It is
// deliberately narrow so tests can drive the executor with a fake.
type Session interface {
	EnsureLoggedIn(ctx context.Context) error
	Invalidate() error
	Navigate(ctx context.Context, pageURL string) error
	FindFirst(ctx context.Context, selectors []string, wait time.Duration) (string, error)
	Click(ctx context.Context, selector string) error
	ClickByText(ctx context.Context, labels []string, wait time.Duration) (string, error)
	Screenshot(ctx context.Context, name string) (string, error)
	InterceptJSON(ctx context.Context, pageURL string, match func(Capture) bool) ([]byte, error)
	HarvestAPIRequests(ctx context.Context, pageURLs []string) ([]ObservedRequest, error)
}

// Doer issues one authenticated HTTP request on the primary path.
type Doer interface {
	Do(ctx context.Context, method, url string, body []byte) (int, []byte, error)
}

// Executor runs every user-facing operation over two paths: the vendor's
// internal API first, and the live web page when the API path is gone.
// Reads fall back only when an endpoint stopped resolving; mutations fall
// back on any non-auth failure, because the user asked for a state change
// and a fallback attempt is cheaper than a retry loop.
type Executor struct {
	session Session
	api     Doer
	norm    *Normalizer
	eps     endpoints
	logger  *zap.Logger
}

func NewExecutor(session Session, api Doer, cfg *config.Config, logger *zap.Logger) *Executor {
	return &Executor{
		session: session,
		api:     api,
		norm:    NewNormalizer(logger),
		eps:     newEndpoints(cfg.Zapier.BaseURL),
		logger:  logger.Named("executor"),
	}
}

// request runs one primary-path call and classifies the outcome. 401/403
// clears the persisted session before surfacing; 404 becomes the internal
// fallback trigger and must leave session state untouched.
func (e *Executor) request(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	status, payload, err := e.api.Do(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("primary path unavailable: %w", err)
	}
	switch {
	case status >= 200 && status < 300:
		return payload, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if ierr := e.session.Invalidate(); ierr != nil {
			e.logger.Warn("failed to clear rejected session", zap.Error(ierr))
		}
		return nil, &AuthExpiredError{Status: status}
	case status == http.StatusNotFound, absentBody(status, payload):
		return nil, ErrEndpointAbsent
	default:
		return nil, &RequestError{Status: status, Body: truncateBody(payload)}
	}
}

// absentBody catches endpoints that answer "not found" with a status other
// than 404, which the vendor's routing layer has been seen to do.
func absentBody(status int, payload []byte) bool {
	if status < 400 || status >= 500 {
		return false
	}
	body := strings.ToLower(string(payload))
	return strings.Contains(body, "not found") || strings.Contains(body, "does not exist")
}

// ListZaps returns every Zap on the account.
func (e *Executor) ListZaps(ctx context.Context) ([]ZapSummary, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	payload, err := e.request(ctx, http.MethodGet, e.eps.zaps(), nil)
	if errors.Is(err, ErrEndpointAbsent) {
		e.logger.Info("zaps endpoint gone, intercepting page traffic instead")
		payload, err = e.session.InterceptJSON(ctx, e.eps.zapsPage(), e.matchCollection("zap"))
	}
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return []ZapSummary{}, nil
	}
	return e.norm.Zaps(payload)
}

// ViewHistory returns recent runs, optionally scoped to one Zap.
func (e *Executor) ViewHistory(ctx context.Context, zapID string, limit int) ([]RunRecord, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	payload, err := e.request(ctx, http.MethodGet, e.eps.runs(zapID, limit), nil)
	if errors.Is(err, ErrEndpointAbsent) {
		e.logger.Info("runs endpoint gone, intercepting page traffic instead")
		payload, err = e.session.InterceptJSON(ctx, e.eps.historyPage(zapID), e.matchCollection("run", "history"))
	}
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return []RunRecord{}, nil
	}

	runs, err := e.norm.Runs(payload)
	if err != nil {
		return nil, err
	}
	// The page may hand us unscoped traffic; the filter has to hold
	// regardless of which path produced the data.
	if zapID != "" {
		filtered := runs[:0]
		for _, r := range runs {
			if r.ZapID == "" || r.ZapID == zapID {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ViewError returns the step-level detail of one run. A fallback window
// that closes without matching traffic yields a sparse detail rather than
// an error; the run id is echoed back so the output is still actionable.
func (e *Executor) ViewError(ctx context.Context, runID string) (*RunDetail, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	payload, err := e.request(ctx, http.MethodGet, e.eps.run(runID), nil)
	if errors.Is(err, ErrEndpointAbsent) {
		e.logger.Info("run detail endpoint gone, intercepting page traffic instead")
		payload, err = e.session.InterceptJSON(ctx, e.eps.runPage(runID), func(cap Capture) bool {
			return cap.Status >= 200 && cap.Status < 300 && strings.Contains(cap.URL, runID)
		})
	}
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return &RunDetail{
			RunRecord: RunRecord{ID: runID, Status: RunUnknown},
			Steps:     []StepRecord{},
		}, nil
	}

	detail, err := e.norm.RunDetail(payload)
	if err != nil {
		return nil, err
	}
	if detail.ID == "" {
		detail.ID = runID
	}
	return detail, nil
}

// ReplayRun re-executes a failed run.
func (e *Executor) ReplayRun(ctx context.Context, runID string) (*OperationResult, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	_, err := e.request(ctx, http.MethodPost, e.eps.replay(runID), nil)
	if err == nil {
		return &OperationResult{
			Success: true,
			Message: fmt.Sprintf("Run %s replay requested via API.", runID),
		}, nil
	}
	var authErr *AuthExpiredError
	if errors.As(err, &authErr) {
		return nil, err
	}
	e.logger.Info("replay API call failed, simulating through the UI", zap.Error(err))
	return e.uiReplay(ctx, runID)
}

// ToggleZap enables or disables a Zap.
func (e *Executor) ToggleZap(ctx context.Context, zapID string, enable bool) (*OperationResult, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	verb := "disabled"
	status := ZapOff
	if enable {
		verb = "enabled"
		status = ZapOn
	}
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return nil, err
	}

	_, err = e.request(ctx, http.MethodPatch, e.eps.zap(zapID), body)
	if err == nil {
		return &OperationResult{
			Success: true,
			Message: fmt.Sprintf("Zap %s %s.", zapID, verb),
		}, nil
	}
	var authErr *AuthExpiredError
	if errors.As(err, &authErr) {
		return nil, err
	}
	e.logger.Info("toggle API call failed, simulating through the UI", zap.Error(err))
	return e.uiToggle(ctx, zapID, verb)
}

// DiscoverEndpoints loads the main app screens and reports the API traffic
// they generate, for refreshing the endpoint table when the vendor ships a
// new web client.
func (e *Executor) DiscoverEndpoints(ctx context.Context) ([]ObservedRequest, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	return e.session.HarvestAPIRequests(ctx, []string{
		e.eps.zapsPage(),
		e.eps.historyPage(""),
	})
}

// matchCollection accepts successful JSON responses whose URL mentions one
// of the hints and whose body parses as a non-empty item collection.
func (e *Executor) matchCollection(hints ...string) func(Capture) bool {
	return func(cap Capture) bool {
		if cap.Status < 200 || cap.Status >= 300 {
			return false
		}
		hinted := false
		for _, h := range hints {
			if strings.Contains(cap.URL, h) {
				hinted = true
				break
			}
		}
		if !hinted {
			return false
		}
		items, err := e.norm.items(cap.Body)
		return err == nil && len(items) > 0
	}
}
