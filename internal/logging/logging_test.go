package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/techopsonedev/onedev/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, config.LogConfig{Level: "info", Format: "json"}))
	logger.Info("pipeline generated", "jobs", 3)
	assert.Contains(t, buf.String(), `"msg":"pipeline generated"`)
	assert.Contains(t, buf.String(), `"jobs":3`)

	buf.Reset()
	logger = slog.New(NewHandler(&buf, config.LogConfig{Level: "warn"}))
	logger.Info("dropped")
	assert.Empty(t, buf.String())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
