package zapier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(zap.NewNop())
}

func TestZapsSynonymSchemasNormalizeIdentically(t *testing.T) {
	// The internal API and the intercepted page traffic name the same
	// attributes differently; both shapes must produce the same summary.
	apiShape := []byte(`{"objects": [
		{"id": 55, "title": "Lead sync", "status": "on", "step_count": 3,
		 "last_run": "2024-03-01T12:00:00Z", "updated_at": "2024-02-28T09:30:00Z"}
	]}`)
	uiShape := []byte(`{"results": [
		{"zap_id": "55", "name": "Lead sync", "state": "enabled",
		 "steps": [{}, {}, {}],
		 "lastRun": "2024-03-01T12:00:00Z", "last_updated": "2024-02-28T09:30:00Z"}
	]}`)

	n := newTestNormalizer()
	fromAPI, err := n.Zaps(apiShape)
	require.NoError(t, err)
	fromUI, err := n.Zaps(uiShape)
	require.NoError(t, err)

	require.Len(t, fromAPI, 1)
	assert.Equal(t, fromAPI, fromUI)
	assert.Equal(t, "55", fromAPI[0].ID)
	assert.Equal(t, "Lead sync", fromAPI[0].Title)
	assert.Equal(t, ZapOn, fromAPI[0].Status)
	assert.Equal(t, 3, fromAPI[0].StepCount)
}

func TestRunsObjectsContainerWithNumericID(t *testing.T) {
	payload := []byte(`{"objects": [
		{"id": 9, "zap_id": "123", "status": "error", "start_time": "2024-01-01T00:00:00Z"}
	]}`)

	runs, err := newTestNormalizer().Runs(payload)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "9", runs[0].ID)
	assert.Equal(t, "123", runs[0].ZapID)
	assert.Equal(t, RunError, runs[0].Status)
	require.NotNil(t, runs[0].StartedAt)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), runs[0].StartedAt.UTC())
}

func TestRunsBareArrayPayload(t *testing.T) {
	payload := []byte(`[{"run_id": "r1", "state": "success"}, {"run_id": "r2", "state": "halted"}]`)

	runs, err := newTestNormalizer().Runs(payload)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].ID)
	assert.Equal(t, RunSuccess, runs[0].Status)
	assert.Equal(t, RunHalted, runs[1].Status)
}

func TestUnknownStatusesNormalizeToUnknown(t *testing.T) {
	n := newTestNormalizer()
	assert.Equal(t, ZapUnknown, n.zapStatus("hibernating"))
	assert.Equal(t, ZapUnknown, n.zapStatus(""))
	assert.Equal(t, RunUnknown, n.runStatus("exploded"))
	assert.Equal(t, RunUnknown, n.runStatus(""))
}

func TestZapStatusDomain(t *testing.T) {
	n := newTestNormalizer()
	assert.Equal(t, ZapOn, n.zapStatus("enabled"))
	assert.Equal(t, ZapOff, n.zapStatus("paused"))
	assert.Equal(t, ZapDraft, n.zapStatus("draft"))
	assert.Equal(t, ZapError, n.zapStatus("errored"))
}

func TestRunDetailExtractsSteps(t *testing.T) {
	payload := []byte(`{
		"id": "r9", "zap_id": 123, "status": "error",
		"error": "HTTP 429 from downstream",
		"steps": [
			{"title": "New row", "app": "Google Sheets", "status": "success"},
			{"title": "Send message", "app": "Slack", "status": "error",
			 "error": "HTTP 429 from downstream", "input": {"channel": "#ops"}}
		]
	}`)

	detail, err := newTestNormalizer().RunDetail(payload)
	require.NoError(t, err)
	assert.Equal(t, "r9", detail.ID)
	assert.Equal(t, "123", detail.ZapID)
	assert.Equal(t, RunError, detail.Status)
	assert.Equal(t, "HTTP 429 from downstream", detail.ErrorText)

	require.Len(t, detail.Steps, 2)
	assert.Equal(t, RunSuccess, detail.Steps[0].Status)
	assert.Equal(t, "Slack", detail.Steps[1].App)
	assert.Equal(t, "HTTP 429 from downstream", detail.Steps[1].Error)
	assert.NotNil(t, detail.Steps[1].Input)
}

func TestRunDetailWrappedInContainer(t *testing.T) {
	payload := []byte(`{"objects": [{"id": "r1", "status": "success"}]}`)

	detail, err := newTestNormalizer().RunDetail(payload)
	require.NoError(t, err)
	assert.Equal(t, "r1", detail.ID)
	assert.Equal(t, RunSuccess, detail.Status)
	assert.Empty(t, detail.Steps)
}

func TestTimeFieldShapes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rfc3339", func(t *testing.T) {
		got := timeField(decodeItem(t, `{"start_time": "2024-03-01T12:00:00Z"}`), "start_time")
		require.NotNil(t, got)
		assert.True(t, got.Equal(ts))
	})
	t.Run("epoch seconds", func(t *testing.T) {
		got := timeField(decodeItem(t, `{"start_time": 1709294400}`), "start_time")
		require.NotNil(t, got)
		assert.True(t, got.Equal(ts))
	})
	t.Run("epoch millis", func(t *testing.T) {
		got := timeField(decodeItem(t, `{"start_time": 1709294400000}`), "start_time")
		require.NotNil(t, got)
		assert.True(t, got.Equal(ts))
	})
	t.Run("absent", func(t *testing.T) {
		assert.Nil(t, timeField(decodeItem(t, `{}`), "start_time"))
	})
}

func TestItemsRejectsUnknownContainer(t *testing.T) {
	_, err := newTestNormalizer().Zaps([]byte(`{"payload": [{"id": 1}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognizable item container")
}

func TestItemsEmptyPayload(t *testing.T) {
	zaps, err := newTestNormalizer().Zaps(nil)
	require.NoError(t, err)
	assert.Empty(t, zaps)
}

func decodeItem(t *testing.T, raw string) map[string]any {
	t.Helper()
	var item map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	return item
}
