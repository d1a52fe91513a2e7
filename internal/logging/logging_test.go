package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, false, "component", "wizard")
	logger.Info("import committed", "config_id", 3, "batch", "b-1", "note", "two words")

	assert.Equal(t, "[INFO] import committed component=wizard config_id=3 batch=b-1 note=\"two words\"\n", buf.String())
}

func TestDebugGate(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	New(&quiet, false).Debug("hidden")
	New(&verbose, true).Debug("shown", "ok", true)

	assert.Empty(t, quiet.String())
	assert.Equal(t, "[DEBUG] shown ok=true\n", verbose.String())
}

func TestGroupsAndErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, false).WithGroup("http")
	logger.Warn("request failed", "status", 502, "err", errors.New("bad gateway"))

	assert.Equal(t, "[WARN] request failed http.status=502 http.err=\"bad gateway\"\n", buf.String())
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { Discard().Error("nothing", "k", "v") })
}
