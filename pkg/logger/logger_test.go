package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*VerboseLogger)(nil)
	_ Logger = (*QuietLogger)(nil)
	_ Logger = (*NullLogger)(nil)
)

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewVerboseLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.Transition("idle", "transferring")
	l.Transfer("/src", "/dest", 2)
	l.Invalid("/src", "/dest", "/dest/a.txt", "mismatch")
	l.Error("transfer", "/dest", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var events []map[string]interface{}
	for _, line := range lines {
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}

	assert.Equal(t, "debug", events[0]["level"])
	assert.Equal(t, "transferring", events[0]["to"])
	assert.Equal(t, float64(2), events[1]["attempt"])
	assert.Equal(t, "warn", events[2]["level"])
	assert.Equal(t, "/dest/a.txt", events[2]["path"])
	assert.Equal(t, "boom", events[3]["error"])
}

func TestQuietLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewQuietLogger(&buf)

	l.Transition("idle", "transferring")
	l.Transfer("/src", "/dest", 1)
	l.Validated("/src", "/dest")
	assert.Empty(t, buf.String())

	l.Invalid("/src/a", "/dest", "/dest/a", "missing")
	l.Invalid("/src/b", "/dest", "/dest/b", "mismatch")
	l.Error("validate", "/dest", errors.New("permission denied"))

	assert.Equal(t,
		"/dest/a does not exist\n"+
			"/dest/b is not a valid copy of /src/b\n"+
			"validate /dest: permission denied\n",
		buf.String())
}
