package events

import (
	"testing"
	"time"

	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePublishAndDrain(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(Event{Type: TypeOrderSubmitted, ClientOrderID: "c-1"}))
	require.NoError(t, q.TryPublish(Event{Type: TypeOrderAccepted, ClientOrderID: "c-1"}))

	got := make(chan Event, 4)
	go q.Run(t.Context(), func(e Event) { got <- e })

	for _, want := range []Type{TypeOrderSubmitted, TypeOrderAccepted} {
		select {
		case e := <-got:
			assert.Equal(t, want, e.Type)
		case <-time.After(time.Second):
			t.Fatal("event never delivered")
		}
	}
}

func TestQueueDropsOnOverflow(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{Type: TypeOrderSubmitted}))

	err := q.TryPublish(Event{Type: TypeOrderAccepted})
	assert.ErrorIs(t, err, exception.ErrQueueFull)
	assert.Equal(t, uint64(1), q.Drops())

	// Emit swallows the error, the counter still advances
	q.Emit(Event{Type: TypeOrderFilled})
	assert.Equal(t, uint64(2), q.Drops())
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(4)
	q.Close()
	q.Close() // idempotent

	assert.ErrorIs(t, q.TryPublish(Event{Type: TypeOrderSubmitted}), exception.ErrQueueClosed)
}

func TestQueueRunStopsWhenClosed(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(Event{Type: TypeOrderSubmitted}))
	q.Close()

	done := make(chan struct{})
	go func() {
		q.Run(t.Context(), func(Event) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run never returned")
	}
}
