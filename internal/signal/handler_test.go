package signal

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_SignalCancelsWithCause(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.handle(syscall.SIGINT)

	require.ErrorIs(t, h.Context().Err(), context.Canceled)
	require.ErrorIs(t, context.Cause(h.Context()), ErrInterrupted)
	assert.Equal(t, syscall.SIGINT, h.Signal())

	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed after a signal")
	}
}

func TestHandler_OnlyFirstSignalCounts(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.handle(syscall.SIGTERM)
	h.handle(syscall.SIGINT)

	assert.Equal(t, syscall.SIGTERM, h.Signal())
}

func TestHandler_Stop(t *testing.T) {
	h := NewHandler(context.Background())

	h.Stop()
	h.Stop()

	require.ErrorIs(t, h.Context().Err(), context.Canceled)
	require.ErrorIs(t, context.Cause(h.Context()), context.Canceled)
	assert.Nil(t, h.Signal())

	select {
	case <-h.Interrupted():
		t.Fatal("Stop is not an interruption")
	default:
	}
}

func TestHandler_ParentCanceled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context should follow its parent")
	}
	assert.Nil(t, h.Signal())
}

func TestHandler_ActiveInitially(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	require.NoError(t, h.Context().Err())
	assert.Nil(t, h.Signal())
}

func TestHandler_DeliveredSignal(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.sigChan <- syscall.SIGTERM

	select {
	case <-h.Interrupted():
	case <-time.After(time.Second):
		t.Fatal("listener should handle a queued signal")
	}
	assert.Equal(t, syscall.SIGTERM, h.Signal())

	// Later signals are drained without blocking.
	for range 3 {
		select {
		case h.sigChan <- syscall.SIGINT:
		case <-time.After(time.Second):
			t.Fatal("signal channel should keep draining")
		}
	}
}
