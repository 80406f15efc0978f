package zapier

import "time"

// ZapStatus is the lifecycle state of a Zap as reported by the vendor.
type ZapStatus string

const (
	ZapOn      ZapStatus = "on"
	ZapOff     ZapStatus = "off"
	ZapDraft   ZapStatus = "draft"
	ZapError   ZapStatus = "error"
	ZapUnknown ZapStatus = "unknown"
)

// RunStatus is the outcome of a single Zap run.
type RunStatus string

const (
	RunSuccess  RunStatus = "success"
	RunError    RunStatus = "error"
	RunHalted   RunStatus = "halted"
	RunFiltered RunStatus = "filtered"
	RunDelayed  RunStatus = "delayed"
	RunUnknown  RunStatus = "unknown"
)

// ZapSummary is an immutable snapshot of one Zap, recomputed on every list
// call. IDs are opaque strings; the vendor has changed id formats before and
// nothing here may assume they are numeric.
type ZapSummary struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    ZapStatus  `json:"status"`
	StepCount int        `json:"stepCount,omitempty"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// RunRecord describes one execution instance of a Zap.
type RunRecord struct {
	ID         string     `json:"id"`
	ZapID      string     `json:"zapId,omitempty"`
	ZapTitle   string     `json:"zapTitle,omitempty"`
	Status     RunStatus  `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	ErrorText  string     `json:"error,omitempty"`
}

// StepRecord is one step inside a run detail.
type StepRecord struct {
	Name   string    `json:"name"`
	App    string    `json:"app,omitempty"`
	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
	Input  any       `json:"input,omitempty"`
	Output any       `json:"output,omitempty"`
}

// RunDetail extends RunRecord with the ordered step sequence. It is the most
// information-dense entity, used for diagnosis before a replay decision.
type RunDetail struct {
	RunRecord
	Steps []StepRecord `json:"steps"`
}

// Capture is one intercepted response from the page's own traffic, handed
// to the executor's match predicates during fallback reads.
type Capture struct {
	URL    string
	Status int
	Body   []byte
}

// ObservedRequest is a single API-shaped request seen while a page loaded,
// the unit of endpoint discovery output.
type ObservedRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Mime   string `json:"mimeType,omitempty"`
}

// OperationResult is returned by mutating operations (replay, toggle). It is
// a reported outcome, not an error: a failed UI fallback still returns one of
// these so the operator can inspect the screenshot and decide what to do next.
type OperationResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Screenshot string `json:"screenshot,omitempty"`
}
