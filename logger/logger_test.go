package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "sk-a...wxyz", Mask("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestLogger_RedactsKeys(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.With("request_id", "r-1").Info("calling provider", "api_key", "sk-abcdefghijklmnop", "model", "gpt-4o")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "sk-a...mnop", fields["api_key"])
	assert.Equal(t, "gpt-4o", fields["model"])
}

func TestNew(t *testing.T) {
	l, err := New("dev", "warn")
	require.NoError(t, err)
	assert.NotNil(t, l.SugaredLogger)

	_, err = New("prod", "loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("ignored", "k", 1)
	l.With("a", "b").Error("ignored")
}
