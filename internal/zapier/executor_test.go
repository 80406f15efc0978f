package zapier

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/config"
)

// fakeSession scripts the browser surface for executor tests.
type fakeSession struct {
	loginErr       error
	loginCalls     int
	invalidated    int
	navigated      []string
	interceptCalls int
	interceptBody  []byte
	interceptErr   error
	findResult     string
	clickedSel     []string
	clickedText    []string
	clickTextQueue []string
	screenshotPath string
	harvested      []ObservedRequest
}

func (f *fakeSession) EnsureLoggedIn(ctx context.Context) error {
	f.loginCalls++
	return f.loginErr
}

func (f *fakeSession) Invalidate() error {
	f.invalidated++
	return nil
}

func (f *fakeSession) Navigate(ctx context.Context, pageURL string) error {
	f.navigated = append(f.navigated, pageURL)
	return nil
}

func (f *fakeSession) FindFirst(ctx context.Context, selectors []string, wait time.Duration) (string, error) {
	return f.findResult, nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.clickedSel = append(f.clickedSel, selector)
	return nil
}

func (f *fakeSession) ClickByText(ctx context.Context, labels []string, wait time.Duration) (string, error) {
	if len(f.clickTextQueue) == 0 {
		return "", nil
	}
	matched := f.clickTextQueue[0]
	f.clickTextQueue = f.clickTextQueue[1:]
	if matched != "" {
		f.clickedText = append(f.clickedText, matched)
	}
	return matched, nil
}

func (f *fakeSession) Screenshot(ctx context.Context, name string) (string, error) {
	return f.screenshotPath, nil
}

func (f *fakeSession) InterceptJSON(ctx context.Context, pageURL string, match func(Capture) bool) ([]byte, error) {
	f.interceptCalls++
	f.navigated = append(f.navigated, pageURL)
	return f.interceptBody, f.interceptErr
}

func (f *fakeSession) HarvestAPIRequests(ctx context.Context, pageURLs []string) ([]ObservedRequest, error) {
	f.navigated = append(f.navigated, pageURLs...)
	return f.harvested, nil
}

// fakeDoer returns one canned response per call, in order.
type fakeDoer struct {
	responses []fakeResponse
	requests  []string
}

type fakeResponse struct {
	status int
	body   string
	err    error
}

func (f *fakeDoer) Do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	f.requests = append(f.requests, method+" "+url)
	if len(f.responses) == 0 {
		return 0, nil, errors.New("no scripted response")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.status, []byte(r.body), r.err
}

func newTestExecutor(session *fakeSession, doer *fakeDoer) *Executor {
	return NewExecutor(session, doer, config.NewDefaultConfig(), zap.NewNop())
}

func TestListZapsPrimaryPath(t *testing.T) {
	session := &fakeSession{}
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 200, body: `{"objects": [{"id": 1, "title": "A", "status": "on"}]}`},
	}}

	zaps, err := newTestExecutor(session, doer).ListZaps(context.Background())
	require.NoError(t, err)
	require.Len(t, zaps, 1)
	assert.Equal(t, "1", zaps[0].ID)
	assert.Equal(t, 1, session.loginCalls)
	assert.Zero(t, session.interceptCalls)
}

func TestListZapsFallsBackOnceOn404(t *testing.T) {
	session := &fakeSession{
		interceptBody: []byte(`{"results": [{"zap_id": "7", "name": "B", "state": "paused"}]}`),
	}
	doer := &fakeDoer{responses: []fakeResponse{{status: 404, body: `{"error": "not found"}`}}}

	zaps, err := newTestExecutor(session, doer).ListZaps(context.Background())
	require.NoError(t, err)
	require.Len(t, zaps, 1)
	assert.Equal(t, "7", zaps[0].ID)
	assert.Equal(t, ZapOff, zaps[0].Status)

	assert.Equal(t, 1, session.interceptCalls, "fallback must run exactly once")
	assert.Len(t, doer.requests, 1, "primary path must not be retried")
	assert.Zero(t, session.invalidated, "endpoint absence must not touch session state")
}

func TestListZaps401ClearsSession(t *testing.T) {
	session := &fakeSession{}
	doer := &fakeDoer{responses: []fakeResponse{{status: 401, body: `{}`}}}

	_, err := newTestExecutor(session, doer).ListZaps(context.Background())
	var authErr *AuthExpiredError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 401, authErr.Status)
	assert.Equal(t, 1, session.invalidated)
	assert.Zero(t, session.interceptCalls, "auth failure must not trigger fallback")
}

func TestListZapsLoginErrorPropagates(t *testing.T) {
	wantErr := &config.MissingCredentialsError{Missing: []string{"zapier.email"}}
	session := &fakeSession{loginErr: wantErr}
	doer := &fakeDoer{}

	_, err := newTestExecutor(session, doer).ListZaps(context.Background())
	var credErr *config.MissingCredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Empty(t, doer.requests)
}

func TestListZapsEmptyInterception(t *testing.T) {
	session := &fakeSession{interceptBody: nil}
	doer := &fakeDoer{responses: []fakeResponse{{status: 404}}}

	zaps, err := newTestExecutor(session, doer).ListZaps(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, zaps)
	assert.Empty(t, zaps)
}

func TestViewHistoryFiltersAndLimits(t *testing.T) {
	session := &fakeSession{
		interceptBody: []byte(`{"objects": [
			{"id": 1, "zap_id": "55", "status": "error"},
			{"id": 2, "zap_id": "99", "status": "success"},
			{"id": 3, "zap_id": "55", "status": "success"},
			{"id": 4, "zap_id": "55", "status": "success"}
		]}`),
	}
	doer := &fakeDoer{responses: []fakeResponse{{status: 404}}}

	runs, err := newTestExecutor(session, doer).ViewHistory(context.Background(), "55", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "1", runs[0].ID)
	assert.Equal(t, "3", runs[1].ID)
}

func TestViewErrorFallbackTimeoutYieldsSparseDetail(t *testing.T) {
	session := &fakeSession{interceptBody: nil}
	doer := &fakeDoer{responses: []fakeResponse{{status: 404}}}

	detail, err := newTestExecutor(session, doer).ViewError(context.Background(), "r42")
	require.NoError(t, err)
	assert.Equal(t, "r42", detail.ID)
	assert.Equal(t, RunUnknown, detail.Status)
	assert.Empty(t, detail.Steps)
}

func TestViewErrorOtherStatusIsRequestError(t *testing.T) {
	session := &fakeSession{}
	doer := &fakeDoer{responses: []fakeResponse{{status: 500, body: "upstream exploded"}}}

	_, err := newTestExecutor(session, doer).ViewError(context.Background(), "r42")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 500, reqErr.Status)
	assert.Zero(t, session.interceptCalls, "reads only fall back on endpoint absence")
}

func TestReplayRunPrimaryPath(t *testing.T) {
	session := &fakeSession{}
	doer := &fakeDoer{responses: []fakeResponse{{status: 200, body: `{}`}}}

	result, err := newTestExecutor(session, doer).ReplayRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Run r1 replay requested via API.", result.Message)
	assert.Empty(t, result.Screenshot)
}

func TestReplayRunFallsBackToUI(t *testing.T) {
	session := &fakeSession{
		clickTextQueue: []string{"Replay", "Confirm"},
		screenshotPath: "/shots/replay-r1-1700000000000.png",
	}
	doer := &fakeDoer{responses: []fakeResponse{{status: 500, body: "boom"}}}

	result, err := newTestExecutor(session, doer).ReplayRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Run r1 replayed via UI.", result.Message)
	assert.Equal(t, session.screenshotPath, result.Screenshot)
	assert.Contains(t, session.clickedText, "Replay")
}

func TestReplayRunAuthFailureDoesNotFallBack(t *testing.T) {
	session := &fakeSession{}
	doer := &fakeDoer{responses: []fakeResponse{{status: 403}}}

	_, err := newTestExecutor(session, doer).ReplayRun(context.Background(), "r1")
	var authErr *AuthExpiredError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, session.navigated)
}

func TestToggleZapPrimaryPath(t *testing.T) {
	session := &fakeSession{}
	doer := &fakeDoer{responses: []fakeResponse{{status: 200, body: `{}`}}}

	result, err := newTestExecutor(session, doer).ToggleZap(context.Background(), "55", true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Zap 55 enabled.", result.Message)
	require.Len(t, doer.requests, 1)
	assert.Contains(t, doer.requests[0], "PATCH")
}

func TestToggleZapUIFallbackResult(t *testing.T) {
	session := &fakeSession{
		findResult:     `[data-zap-id="55"] button[role="switch"]`,
		clickTextQueue: []string{"Turn off"},
		screenshotPath: "/shots/toggle-55-1700000000000.png",
	}
	doer := &fakeDoer{responses: []fakeResponse{{status: 404}}}

	result, err := newTestExecutor(session, doer).ToggleZap(context.Background(), "55", false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Zap 55 disabled via UI.", result.Message)
	assert.Equal(t, session.screenshotPath, result.Screenshot)
	assert.Contains(t, session.clickedSel, session.findResult)
}

func TestToggleZapControlMissingIsReportedNotRaised(t *testing.T) {
	session := &fakeSession{
		findResult:     "",
		screenshotPath: "/shots/toggle-55.png",
	}
	doer := &fakeDoer{responses: []fakeResponse{{status: 500}}}

	result, err := newTestExecutor(session, doer).ToggleZap(context.Background(), "55", false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Could not locate the on/off switch for Zap 55")
	assert.Equal(t, session.screenshotPath, result.Screenshot)
}

func TestDiscoverEndpoints(t *testing.T) {
	session := &fakeSession{harvested: []ObservedRequest{
		{Method: http.MethodGet, URL: "https://zapier.com/api/v3/zaps", Status: 200},
	}}
	doer := &fakeDoer{}

	observed, err := newTestExecutor(session, doer).DiscoverEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, observed, 1)
	assert.Equal(t, 1, session.loginCalls)
	assert.Empty(t, doer.requests)
}

func TestMatchCollection(t *testing.T) {
	e := newTestExecutor(&fakeSession{}, &fakeDoer{})
	match := e.matchCollection("zap")

	assert.True(t, match(Capture{
		URL:    "https://zapier.com/api/v3/zaps?limit=50",
		Status: 200,
		Body:   []byte(`{"objects": [{"id": 1}]}`),
	}))
	assert.False(t, match(Capture{URL: "https://zapier.com/api/v3/zaps", Status: 500, Body: []byte(`{}`)}))
	assert.False(t, match(Capture{URL: "https://zapier.com/api/accounts", Status: 200, Body: []byte(`{"objects": []}`)}))
	assert.False(t, match(Capture{URL: "https://zapier.com/api/v3/zaps", Status: 200, Body: []byte(`not json`)}))
}

func TestAbsentBody(t *testing.T) {
	assert.True(t, absentBody(400, []byte(`{"error": "resource not found"}`)))
	assert.True(t, absentBody(422, []byte(`Zap does not exist`)))
	assert.False(t, absentBody(400, []byte(`{"error": "bad request"}`)))
	assert.False(t, absentBody(500, []byte(`not found`)))
	assert.False(t, absentBody(200, []byte(`not found`)))
}

func TestListZapsNotFoundBodyFallsBack(t *testing.T) {
	session := &fakeSession{
		interceptBody: []byte(`{"objects": [{"id": "z1", "title": "UI Zap", "status": "on"}]}`),
	}
	doer := &fakeDoer{responses: []fakeResponse{
		{status: 400, body: `{"error": "resource not found"}`},
	}}
	e := newTestExecutor(session, doer)

	zaps, err := e.ListZaps(context.Background())
	require.NoError(t, err)
	require.Len(t, zaps, 1)
	assert.Equal(t, "UI Zap", zaps[0].Title)
	assert.Equal(t, 1, session.interceptCalls)
}
