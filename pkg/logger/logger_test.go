package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger_FromContext(t *testing.T) {
	tl := NewTestLogger()
	cl := NewContextLogger(tl)

	t.Run("batch id carried from context", func(t *testing.T) {
		tl.Clear()
		ctx := context.WithValue(context.Background(), ContextKeyBatchID, "b-42")

		cl.FromContext(ctx).Info("procesando lote", Int64("bytes", 1024))

		entries := tl.GetEntries()
		require.Len(t, entries, 1)
		assert.Equal(t, "INFO", entries[0].Level)
		assert.Contains(t, entries[0].Fields, String("batch_id", "b-42"))
		assert.Contains(t, entries[0].Fields, Int64("bytes", 1024))
	})

	t.Run("bare context logs without the field", func(t *testing.T) {
		tl.Clear()

		cl.FromContext(context.Background()).Warn("sin lote")

		entries := tl.GetEntries()
		require.Len(t, entries, 1)
		assert.Empty(t, entries[0].Fields)
	})
}
