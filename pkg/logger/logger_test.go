package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init("loud", "json"))
}

func TestInit_Console(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	require.NoError(t, Init("debug", "console"))
	assert.NotNil(t, L())
}

func TestWrappersWriteToGlobalLogger(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))

	Info("cycle finished", zap.Int("published", 2))
	Warn("tick skipped")

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "cycle finished", entry.Message)
	assert.Equal(t, int64(2), entry.ContextMap()["published"])
}
