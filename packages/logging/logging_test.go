package logging

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForVerbosity(t *testing.T) {
	assert.Equal(t, log.LevelInfo, LevelForVerbosity(0, false))
	assert.Equal(t, log.LevelDebug, LevelForVerbosity(1, false))
	assert.Equal(t, log.LevelTrace, LevelForVerbosity(3, false))
	assert.Equal(t, log.LevelError, LevelForVerbosity(3, true))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, log.LevelInfo, true, false)
	logger.Info("hello", "feature", "login")
	logger.Debug("dropped")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"feature":"login"`)
	assert.NotContains(t, out, "dropped")
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	logger := rec.Logger().New("component", "test")

	logger.Warn("careful", "path", "x.js")
	logger.Trace("detail")

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "careful", records[0].Message)
	assert.Equal(t, "test", records[0].Attrs["component"])
	assert.Equal(t, "x.js", records[0].Attrs["path"])
	assert.Len(t, rec.AtLevel(log.LevelWarn), 1)
	assert.Len(t, rec.AtLevel(log.LevelTrace), 1)
}
