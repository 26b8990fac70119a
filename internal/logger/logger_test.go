package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	require.NoError(t, Initialize("debug", true))
	assert.True(t, Log.Core().Enabled(zap.DebugLevel))

	require.NoError(t, Initialize("warn", false))
	assert.False(t, Log.Core().Enabled(zap.InfoLevel))

	assert.Error(t, Initialize("loud", true))
}
