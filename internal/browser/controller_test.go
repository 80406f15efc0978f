package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/config"
	"github.com/bigl34/zapctl/internal/store"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	cfg := config.NewDefaultConfig()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewController(cfg, st, zap.NewNop())
}

func TestChromeArgsHeadlessByDefault(t *testing.T) {
	cfg := config.NewDefaultConfig()
	args := chromeArgs(cfg, 9777, "/tmp/profile")
	assert.Contains(t, args, "--headless=new")
	assert.Contains(t, args, "--remote-debugging-port=9777")
	assert.Contains(t, args, "--user-data-dir=/tmp/profile")
}

func TestChromeArgsInteractiveShowsWindow(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Browser.Interactive = true
	cfg.Browser.Args = []string{"--lang=en-US"}
	args := chromeArgs(cfg, 9777, "/tmp/profile")
	assert.NotContains(t, args, "--headless=new")
	assert.Contains(t, args, "--lang=en-US")
}

func TestResolveExecPathPrefersConfigured(t *testing.T) {
	p, err := resolveExecPath("/opt/custom/chrome")
	require.NoError(t, err)
	assert.Equal(t, "/opt/custom/chrome", p)
}

func TestWaitForDevtools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := waitForDevtools(context.Background(), srv.URL, 2*time.Second)
	assert.NoError(t, err)
}

func TestWaitForDevtoolsTimesOut(t *testing.T) {
	err := waitForDevtools(context.Background(), "http://127.0.0.1:1", 300*time.Millisecond)
	assert.Error(t, err)
}

func TestDomainMatches(t *testing.T) {
	assert.True(t, domainMatches(".zapier.com", "zapier.com"))
	assert.True(t, domainMatches("zapier.com", "zapier.com"))
	assert.True(t, domainMatches(".zapier.com", "app.zapier.com"))
	assert.True(t, domainMatches("cdn.zapier.com", "zapier.com"))
	assert.False(t, domainMatches("notzapier.com", "zapier.com"))
	assert.False(t, domainMatches("example.com", "zapier.com"))
}

func TestBaseHost(t *testing.T) {
	assert.Equal(t, "zapier.com", baseHost("https://zapier.com"))
	assert.Equal(t, "127.0.0.1", baseHost("http://127.0.0.1:8080"))
}

func TestResetClearsArtifactsWithoutBrowser(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.store.SaveState(&store.State{Cookies: []store.Cookie{{Name: "sid", Value: "x"}}}))
	require.NoError(t, c.store.SaveHandle(&store.Handle{DevtoolsURL: "http://127.0.0.1:1", PID: 0}))

	require.NoError(t, c.Reset(context.Background()))

	state, err := c.store.LoadState()
	require.NoError(t, err)
	assert.Nil(t, state)
	handle, err := c.store.LoadHandle()
	require.NoError(t, err)
	assert.Nil(t, handle)
}

func TestInvalidateClearsSavedState(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.store.SaveState(&store.State{Cookies: []store.Cookie{{Name: "sid", Value: "x"}}}))
	c.loggedIn = true

	require.NoError(t, c.Invalidate())

	assert.False(t, c.loggedIn)
	state, err := c.store.LoadState()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "toggle-zap-55", sanitizeName("Toggle Zap 55"))
	assert.Equal(t, "page", sanitizeName("page"))
	assert.Equal(t, "a-b", sanitizeName("?a/b!"))
}

func TestScreenshotFile(t *testing.T) {
	assert.Equal(t, "run-55.png", screenshotFile("run-55.png"))
	assert.Equal(t, "evidence.jpeg", screenshotFile("evidence.jpeg"))
	// Directory components are never honored, only the file name.
	assert.Equal(t, "out.png", screenshotFile("../escape/out.png"))

	assert.Regexp(t, `^toggle-55-\d+\.png$`, screenshotFile("Toggle 55"))
	assert.Regexp(t, `^page-\d+\.png$`, screenshotFile(""))
}

func TestPollUntilStopsOnSuccess(t *testing.T) {
	calls := 0
	ok, err := pollUntil(context.Background(), time.Second, time.Millisecond, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestPollUntilHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pollUntil(ctx, time.Second, 50*time.Millisecond, func() (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
