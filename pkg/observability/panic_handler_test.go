package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeCall(t *testing.T) {
	t.Run("returns fn error", func(t *testing.T) {
		var buf bytes.Buffer
		want := errors.New("count failed")

		err := SafeCall(NewLogger(InfoLevel, &buf), "dashboard.files", func() error { return want })

		assert.Equal(t, want, err)
		assert.Zero(t, buf.Len())
	})

	t.Run("converts panic", func(t *testing.T) {
		var buf bytes.Buffer

		err := SafeCall(NewLogger(InfoLevel, &buf), "dashboard.roles", func() error {
			var m map[string]int
			m["boom"] = 1
			return nil
		})

		var panicErr *PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, "dashboard.roles", panicErr.Where)
		assert.NotEmpty(t, panicErr.Stack)
		assert.Contains(t, err.Error(), "panic in dashboard.roles")

		entry := decodeLine(t, &buf)
		assert.Equal(t, "PANIC recovered", entry["msg"])
		assert.Equal(t, "dashboard.roles", entry["context"])
		assert.Contains(t, entry["stack"], "panic_handler")
	})
}

func TestLogPanic(t *testing.T) {
	var buf bytes.Buffer
	LogPanic(NewLogger(InfoLevel, &buf), "GET /api/files", "nil pointer")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "nil pointer", entry["panic"])
	assert.Equal(t, "GET /api/files", entry["context"])
}
