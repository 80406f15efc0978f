package zapier

import (
	"errors"
	"fmt"
)

// ErrEndpointAbsent signals that the vendor no longer serves an internal
// endpoint we know about. It never leaves the executor: it is the internal
// trigger for the fallback path and must not clear session state.
var ErrEndpointAbsent = errors.New("internal endpoint absent")

// AuthExpiredError indicates the vendor rejected our session (401/403). The
// executor clears persisted session artifacts before returning it, so the
// caller only needs to retry the same command to trigger a fresh login.
type AuthExpiredError struct {
	Status int
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("session rejected by vendor (status %d); session cleared, retry the command to log in again", e.Status)
}

// ChallengeKind distinguishes the interactive obstacles the login flow can
// run into.
type ChallengeKind string

const (
	ChallengeTwoFactor ChallengeKind = "two-factor"
	ChallengeCaptcha   ChallengeKind = "captcha"
)

// ChallengeError is raised when login hits a two-factor or bot challenge that
// requires a human. Screenshot always names a file that exists on disk.
type ChallengeError struct {
	Kind       ChallengeKind
	Screenshot string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("login blocked by %s challenge (screenshot: %s); re-run with --interactive and complete it in the browser window", e.Kind, e.Screenshot)
}

// ElementNotFoundError means UI automation exhausted its candidate selectors.
// The login flow raises it (no further progress is possible there); mutating
// operations convert it into a failed OperationResult instead.
type ElementNotFoundError struct {
	What       string
	Screenshot string
}

func (e *ElementNotFoundError) Error() string {
	if e.Screenshot != "" {
		return fmt.Sprintf("could not locate %s on the page (screenshot: %s)", e.What, e.Screenshot)
	}
	return fmt.Sprintf("could not locate %s on the page", e.What)
}

// LoginError covers login attempts that ran out of time without hitting a
// recognizable challenge, usually a wrong password or a silently changed
// flow.
type LoginError struct {
	Reason     string
	Screenshot string
}

func (e *LoginError) Error() string {
	if e.Screenshot != "" {
		return fmt.Sprintf("login failed: %s (screenshot: %s)", e.Reason, e.Screenshot)
	}
	return "login failed: " + e.Reason
}

// RequestError carries any other non-2xx primary-path response. The body is
// truncated before it gets here.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("vendor API request failed with status %d: %s", e.Status, e.Body)
}

const maxErrorBody = 512

// truncateBody keeps error payloads readable in logs and CLI output.
func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
