package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("JSON at debug", func(t *testing.T) {
		logger, err := New("debug", "json")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("Console at warn", func(t *testing.T) {
		logger, err := New("WARN", "console")
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("Bad level", func(t *testing.T) {
		_, err := New("chatty", "json")
		assert.ErrorContains(t, err, "invalid log level")
	})

	t.Run("Bad format", func(t *testing.T) {
		_, err := New("info", "xml")
		assert.ErrorContains(t, err, "invalid log format")
	})
}
