package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bigl34/zapctl/internal/config"
)

func TestInitializeOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &zaptest.Buffer{}
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "test"}, sink)

	first := GetLogger()
	require.NotNil(t, first)

	// A second Initialize must not replace the logger.
	Initialize(config.LoggerConfig{Level: "error", Format: "json", ServiceName: "other"}, &zaptest.Buffer{})
	assert.Same(t, first, GetLogger())

	first.Info("hello")
	assert.Contains(t, sink.String(), `"hello"`)
	assert.Contains(t, sink.String(), `"test"`)
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &zaptest.Buffer{}
	Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json", ServiceName: "test"}, sink)

	logger := GetLogger()
	logger.Debug("should be dropped")
	logger.Info("should appear")

	assert.NotContains(t, sink.String(), "should be dropped")
	assert.Contains(t, sink.String(), "should appear")
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger(), "fallback logger must always be available")
}

func TestEncoderFormats(t *testing.T) {
	assert.NotNil(t, getEncoder("console"))
	assert.NotNil(t, getEncoder("json"))
}
