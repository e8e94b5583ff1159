package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerWritesFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewWriterLogger(buf, LogLevelDebug).Module("allotment")

	log.With(String("serial", "CU001")).Info("allotment created",
		Int("items", 3), Error(errors.New("pdf failed")))

	out := buf.String()
	assert.Contains(t, out, "module=allotment")
	assert.Contains(t, out, "serial=CU001")
	assert.Contains(t, out, "items=3")
	assert.Contains(t, out, `error="pdf failed"`)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewWriterLogger(buf, LogLevelWarn).Module("flc")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSubModuleAndCorrelation(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewWriterLogger(buf, LogLevelInfo).Module("api").Module("handlers")
	ctx := WithCorrelationID(context.Background(), "abc123")

	log.WithContext(ctx).Info("request")

	assert.Contains(t, buf.String(), "module=api.handlers")
	assert.Contains(t, buf.String(), "correlation_id=abc123")
	assert.Equal(t, "abc123", CorrelationID(ctx))
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		FileOutput:   FileOutput{Enabled: true, Path: path, Level: "info"},
		ModuleLevels: map[string]string{"report": "error"},
	})
	require.NoError(t, err)

	cl.Module("registry").Info("components registered", Int("count", 2))
	cl.Module("report").Info("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"components registered"`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}
