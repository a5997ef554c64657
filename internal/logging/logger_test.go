package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestReplaceAttr(t *testing.T) {
	opts := options(slog.LevelInfo)
	a := opts.ReplaceAttr(nil, slog.String("error", "boom"))
	assert.Equal(t, "err", a.Key)

	b := opts.ReplaceAttr(nil, slog.String("poll_id", "1"))
	assert.Equal(t, "poll_id", b.Key)
}
