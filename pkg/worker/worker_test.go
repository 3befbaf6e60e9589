package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStop_Idempotent(t *testing.T) {
	// Shutdown can race: the signal handler and context cancellation both
	// call Stop, so a second call must be a no-op, not a panic.
	w := &BaseWorker{stopChan: make(chan struct{})}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	select {
	case <-w.stopChan:
	default:
		t.Fatal("stop channel should be closed")
	}
}
