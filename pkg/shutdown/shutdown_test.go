package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

func TestHandler_RunsHooksInOrder(t *testing.T) {
	rec := logging.NewRecorder()
	h := NewHandler(time.Second, rec)

	var order []string
	h.Register("logs", PrioritySessions + 1, func(context.Context) error { order = append(order, "logs"); return nil })
	h.Register("http", PriorityHTTP, func(context.Context) error { order = append(order, "http"); return nil })
	h.Register("sessions", PrioritySessions, func(context.Context) error {
		order = append(order, "sessions")
		return errors.New("boom")
	})

	err := h.Shutdown()
	require.Error(t, err)
	assert.Equal(t, []string{"http", "sessions", "logs"}, order)
	assert.Equal(t, 1, rec.Count("error"))

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.ErrorIs(t, h.Shutdown(), ErrAlreadyClosed)
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(10*time.Millisecond, nil)
	ran := false
	h.Register("slow", PriorityHTTP, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	h.Register("late", PrioritySessions + 1, func(context.Context) error { ran = true; return nil })

	assert.ErrorIs(t, h.Shutdown(), ErrShutdownTimeout)
	assert.False(t, ran)
}

func TestHandler_WaitOnContext(t *testing.T) {
	h := NewHandler(time.Second, nil)
	called := false
	h.Register("http", PriorityHTTP, func(context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Wait(ctx))
	assert.True(t, called)
}
