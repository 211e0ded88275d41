package govlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("also hidden")
	require.Zero(t, buf.Len(), "expected no output below configured level")

	l.Warn("visible", "key", "value")
	require.Contains(t, buf.String(), "[WARN] visible key=value")
}

func TestDefaultIsLazyAndReplaceable(t *testing.T) {
	var buf bytes.Buffer
	custom := New(&Config{Level: LevelDebug, Output: &buf})
	SetDefault(custom)
	defer SetDefault(nil)

	Debug("hello", "n", 1)
	require.Contains(t, buf.String(), "hello n=1")
}

func TestFormatKVOddArgsIgnoresTrailing(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelInfo, Output: &buf})
	l.Info("msg", "onlykey")
	require.NotContains(t, buf.String(), "onlykey", "dangling key without value should be dropped")
}
