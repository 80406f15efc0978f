package zapier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// UI simulation is the mutation path of last resort: find the control, click
// it, answer the confirmation, photograph the aftermath. A control that
// cannot be found is a reported outcome, not an error; the screenshot tells
// the operator what the page actually looked like.

const (
	controlWait = 10 * time.Second
	confirmWait = 3 * time.Second
)

var replayLabels = []string{"Replay", "Replay run", "Retry", "Run again"}

func toggleSelectors(zapID string) []string {
	return []string{
		fmt.Sprintf(`[data-zap-id=%q] button[role="switch"]`, zapID),
		fmt.Sprintf(`[data-id=%q] button[role="switch"]`, zapID),
		fmt.Sprintf(`[data-zap-id=%q] input[type="checkbox"]`, zapID),
		fmt.Sprintf(`a[href*="/editor/%s"] ~ * button[role="switch"]`, zapID),
	}
}

func (e *Executor) uiReplay(ctx context.Context, runID string) (*OperationResult, error) {
	if err := e.session.Navigate(ctx, e.eps.runPage(runID)); err != nil {
		return nil, err
	}

	matched, err := e.session.ClickByText(ctx, replayLabels, controlWait)
	if err != nil {
		return nil, err
	}
	if matched == "" {
		shot, serr := e.session.Screenshot(ctx, "replay-"+runID)
		if serr != nil {
			e.logger.Warn("failed to capture evidence screenshot", zap.Error(serr))
		}
		return &OperationResult{
			Success:    false,
			Message:    fmt.Sprintf("Could not locate a replay control for run %s.", runID),
			Screenshot: shot,
		}, nil
	}

	e.confirm(ctx, []string{"Confirm", "Yes, replay", "Replay", "Yes", "OK"})

	shot, serr := e.session.Screenshot(ctx, "replay-"+runID)
	if serr != nil {
		e.logger.Warn("failed to capture evidence screenshot", zap.Error(serr))
	}
	return &OperationResult{
		Success:    true,
		Message:    fmt.Sprintf("Run %s replayed via UI.", runID),
		Screenshot: shot,
	}, nil
}

func (e *Executor) uiToggle(ctx context.Context, zapID, verb string) (*OperationResult, error) {
	if err := e.session.Navigate(ctx, e.eps.zapsPage()); err != nil {
		return nil, err
	}

	sel, err := e.session.FindFirst(ctx, toggleSelectors(zapID), controlWait)
	if err != nil {
		return nil, err
	}
	if sel == "" {
		shot, serr := e.session.Screenshot(ctx, "toggle-"+zapID)
		if serr != nil {
			e.logger.Warn("failed to capture evidence screenshot", zap.Error(serr))
		}
		return &OperationResult{
			Success:    false,
			Message:    fmt.Sprintf("Could not locate the on/off switch for Zap %s.", zapID),
			Screenshot: shot,
		}, nil
	}
	if err := e.session.Click(ctx, sel); err != nil {
		return nil, err
	}

	e.confirm(ctx, []string{"Turn off", "Turn on", "Confirm", "Yes", "OK"})

	shot, serr := e.session.Screenshot(ctx, "toggle-"+zapID)
	if serr != nil {
		e.logger.Warn("failed to capture evidence screenshot", zap.Error(serr))
	}
	return &OperationResult{
		Success:    true,
		Message:    fmt.Sprintf("Zap %s %s via UI.", zapID, verb),
		Screenshot: shot,
	}, nil
}

// confirm answers a confirmation prompt when one appears. Absence of a
// prompt is normal; some actions apply immediately.
func (e *Executor) confirm(ctx context.Context, labels []string) {
	matched, err := e.session.ClickByText(ctx, labels, confirmWait)
	if err != nil {
		e.logger.Debug("confirmation click failed", zap.Error(err))
		return
	}
	if matched != "" {
		e.logger.Debug("answered confirmation prompt", zap.String("label", matched))
	}
}
