package zapier

import (
	"fmt"
	"net/url"
	"strings"
)

// The vendor's internal API paths below were established empirically by
// watching the web client's own traffic. None of them are a public contract
// and all of them can change without notice; treat this table as
// configuration, not truth. When a path stops resolving the executor falls
// back to driving the page, so a silent vendor change degrades rather than
// breaks.
const (
	// DefaultBaseURL is the vendor web application root.
	DefaultBaseURL = "https://zapier.com"

	// LoginPath is the interactive login page.
	LoginPath = "/app/login"

	// ProbePath answers with the current account when the session is valid.
	ProbePath = "/api/v4/session"

	// zapsPath lists the account's Zaps.
	zapsPath = "/api/v3/zaps"

	// runsPath lists run history, newest first.
	runsPath = "/api/v3/runs"

	// ZapsPagePath and RunsPagePath are the UI screens whose traffic the
	// read fallback intercepts.
	ZapsPagePath = "/app/zaps"
	RunsPagePath = "/app/history"
)

// endpoints builds vendor URLs against a configurable base so tests can
// point the executor at a local server.
type endpoints struct {
	base string
}

func newEndpoints(base string) endpoints {
	if base == "" {
		base = DefaultBaseURL
	}
	return endpoints{base: strings.TrimRight(base, "/")}
}

// zaps returns the list-zaps URL.
func (e endpoints) zaps() string {
	return e.base + zapsPath
}

// runs returns the run-history URL, optionally filtered by Zap id.
func (e endpoints) runs(zapID string, limit int) string {
	q := url.Values{}
	if zapID != "" {
		q.Set("zap_id", zapID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	u := e.base + runsPath
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// run returns the detail URL for one run.
func (e endpoints) run(runID string) string {
	return fmt.Sprintf("%s%s/%s", e.base, runsPath, url.PathEscape(runID))
}

// replay returns the replay URL for one run.
func (e endpoints) replay(runID string) string {
	return fmt.Sprintf("%s%s/%s/replay", e.base, runsPath, url.PathEscape(runID))
}

// zap returns the mutation URL for one Zap.
func (e endpoints) zap(zapID string) string {
	return fmt.Sprintf("%s%s/%s", e.base, zapsPath, url.PathEscape(zapID))
}

// zapsPage returns the UI screen listing the account's Zaps.
func (e endpoints) zapsPage() string {
	return e.base + ZapsPagePath
}

// historyPage returns the UI history screen, optionally scoped to a Zap.
func (e endpoints) historyPage(zapID string) string {
	u := e.base + RunsPagePath
	if zapID == "" {
		return u
	}
	return u + "?zap_id=" + url.QueryEscape(zapID)
}

// runPage returns the UI screen for a single run.
func (e endpoints) runPage(runID string) string {
	return fmt.Sprintf("%s%s/%s", e.base, RunsPagePath, url.PathEscape(runID))
}
