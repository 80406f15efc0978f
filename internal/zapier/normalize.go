package zapier

import (
	stdjson "encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// json decodes with UseNumber so numeric ids survive as their literal text
// instead of drifting through float64.
var json = jsoniter.Config{UseNumber: true, EscapeHTML: true, SortMapKeys: true}.Froze()

// The two paths (internal API vs intercepted page traffic) expose slightly
// different schemas for logically identical data, and the vendor has renamed
// fields across API versions. Normalizer is the single place that absorbs
// that: every logical attribute is extracted by probing a fixed synonym list,
// so a vendor rename is a one-line change here rather than a hunt across call
// sites.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer returns a Normalizer that logs observed schema drift.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger.Named("normalize")}
}

// containerFields is the wrapper probe order when the payload is not a bare
// array. Order matters: the first present field wins.
var containerFields = []string{"objects", "results", "items", "data", "zaps", "runs"}

// items extracts the item collection from a raw payload: a direct array, or
// the first known wrapper field holding one.
func (n *Normalizer) items(raw []byte) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var arr []map[string]any
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("payload is not a JSON array of objects: %w", err)
		}
		return arr, nil
	}

	var obj map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	for _, field := range containerFields {
		inner, ok := obj[field]
		if !ok {
			continue
		}
		var arr []map[string]any
		if err := json.Unmarshal(inner, &arr); err != nil {
			// Present but not an array; keep probing.
			n.logger.Warn("Container field present but not an array; vendor schema may have drifted.",
				zap.String("field", field))
			continue
		}
		return arr, nil
	}
	return nil, fmt.Errorf("no recognizable item container in payload (probed %v)", containerFields)
}

// Zaps normalizes a list-zaps payload from either path.
func (n *Normalizer) Zaps(raw []byte) ([]ZapSummary, error) {
	items, err := n.items(raw)
	if err != nil {
		return nil, err
	}
	zaps := make([]ZapSummary, 0, len(items))
	for _, item := range items {
		z := ZapSummary{
			ID:        stringField(item, "id", "zap_id"),
			Title:     stringField(item, "title", "name", "description"),
			Status:    n.zapStatus(stringField(item, "status", "state", "paused_status")),
			LastRunAt: timeField(item, "last_run", "last_run_at", "lastRun"),
			UpdatedAt: timeField(item, "updated_at", "last_updated", "modified_at"),
		}
		if steps := intField(item, "step_count", "steps_count"); steps > 0 {
			z.StepCount = steps
		} else if arr, ok := item["steps"].([]any); ok {
			z.StepCount = len(arr)
		} else if arr, ok := item["nodes"].([]any); ok {
			z.StepCount = len(arr)
		}
		zaps = append(zaps, z)
	}
	return zaps, nil
}

// Runs normalizes a run-history payload from either path.
func (n *Normalizer) Runs(raw []byte) ([]RunRecord, error) {
	items, err := n.items(raw)
	if err != nil {
		return nil, err
	}
	runs := make([]RunRecord, 0, len(items))
	for _, item := range items {
		runs = append(runs, n.run(item))
	}
	return runs, nil
}

// RunDetail normalizes a single-run payload, including its step sequence.
// Detail payloads are sometimes wrapped in a single-element container and
// sometimes a bare object.
func (n *Normalizer) RunDetail(raw []byte) (*RunDetail, error) {
	var item map[string]any
	if items, err := n.items(raw); err == nil && len(items) > 0 {
		item = items[0]
	} else {
		if uerr := json.Unmarshal(raw, &item); uerr != nil {
			return nil, fmt.Errorf("run detail payload unparsable: %w", uerr)
		}
	}

	detail := &RunDetail{RunRecord: n.run(item), Steps: []StepRecord{}}
	for _, key := range []string{"steps", "nodes", "step_runs"} {
		arr, ok := item[key].([]any)
		if !ok {
			continue
		}
		for _, el := range arr {
			step, ok := el.(map[string]any)
			if !ok {
				continue
			}
			detail.Steps = append(detail.Steps, StepRecord{
				Name:   stringField(step, "title", "name", "action"),
				App:    stringField(step, "app", "service", "selected_api"),
				Status: n.runStatus(stringField(step, "status", "state")),
				Error:  stringField(step, "error", "error_message"),
				Input:  step["input"],
				Output: step["output"],
			})
		}
		break
	}
	return detail, nil
}

func (n *Normalizer) run(item map[string]any) RunRecord {
	return RunRecord{
		ID:         stringField(item, "id", "run_id"),
		ZapID:      stringField(item, "zap_id", "zapId", "workflow_id"),
		ZapTitle:   stringField(item, "zap_title", "zap_name", "title"),
		Status:     n.runStatus(stringField(item, "status", "state")),
		StartedAt:  timeField(item, "start_time", "started_at", "start"),
		FinishedAt: timeField(item, "finish_time", "finished_at", "end_time"),
		ErrorText:  stringField(item, "error", "error_message", "error_summary"),
	}
}

// zapStatus maps a vendor status value onto the fixed lifecycle domain.
// Unknown values normalize to ZapUnknown rather than failing the whole list.
func (n *Normalizer) zapStatus(s string) ZapStatus {
	switch strings.ToLower(s) {
	case "on", "enabled", "running", "true":
		return ZapOn
	case "off", "disabled", "paused", "false":
		return ZapOff
	case "draft":
		return ZapDraft
	case "error", "errored":
		return ZapError
	case "":
		return ZapUnknown
	default:
		n.logger.Warn("Unrecognized Zap status from vendor; normalizing to unknown.", zap.String("status", s))
		return ZapUnknown
	}
}

func (n *Normalizer) runStatus(s string) RunStatus {
	switch strings.ToLower(s) {
	case "success", "succeeded", "ok":
		return RunSuccess
	case "error", "errored", "failed":
		return RunError
	case "halted", "stopped":
		return RunHalted
	case "filtered", "skipped":
		return RunFiltered
	case "delayed", "waiting", "holding", "throttled":
		return RunDelayed
	case "":
		return RunUnknown
	default:
		n.logger.Warn("Unrecognized run status from vendor; normalizing to unknown.", zap.String("status", s))
		return RunUnknown
	}
}

// stringField probes the synonym list and stringifies whatever it finds.
// Numbers keep their literal form; ids are never parsed as integers.
func stringField(item map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case stdjson.Number:
			return t.String()
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

func intField(item map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := item[key]
		if !ok {
			continue
		}
		if num, ok := v.(stdjson.Number); ok {
			if i, err := num.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return 0
}

// timeField parses RFC3339 strings or epoch seconds/milliseconds, whichever
// shape the vendor happens to emit today.
func timeField(item map[string]any, keys ...string) *time.Time {
	for _, key := range keys {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return &parsed
			}
			if parsed, err := time.Parse("2006-01-02T15:04:05", t); err == nil {
				return &parsed
			}
		case stdjson.Number:
			if i, err := t.Int64(); err == nil && i > 0 {
				var parsed time.Time
				if i > 1e12 { // epoch millis
					parsed = time.UnixMilli(i).UTC()
				} else {
					parsed = time.Unix(i, 0).UTC()
				}
				return &parsed
			}
		}
	}
	return nil
}
