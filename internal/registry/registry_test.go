package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"main/internal/adapter"
	"main/internal/adapter/enum"

	"main/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(clientID string) *adapter.Order {
	return &adapter.Order{
		ClientOrderID: clientID,
		Symbol:        adapter.NewSymbol("SOL", "USDT"),
		Side:          enum.OrderSideBuy,
		Type:          enum.OrderTypeLimit,
		State:         enum.OrderStatePendingSubmit,
		Price:         decimal.NewFromInt(100),
		Quantity:      decimal.NewFromInt(2),
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))
	assert.ErrorIs(t, r.Register(newOrder("c-1")), exception.ErrOrderDuplicateClientID)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(nil), exception.ErrOrderInvalidRequest)
	assert.ErrorIs(t, r.Register(&adapter.Order{}), exception.ErrOrderInvalidRequest)
}

func TestLookupReturnsCopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))

	ord, ok := r.Lookup("c-1")
	require.True(t, ok)
	ord.State = enum.OrderStateFilled

	again, ok := r.Lookup("c-1")
	require.True(t, ok)
	assert.Equal(t, enum.OrderStatePendingSubmit, again.State)
}

func TestLookupByOrderID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))
	require.True(t, r.Mutate("c-1", func(o *adapter.Order) {
		o.OrderID = "v-42"
	}))

	ord, ok := r.LookupByOrderID("v-42")
	require.True(t, ok)
	assert.Equal(t, "c-1", ord.ClientOrderID)

	_, ok = r.LookupByOrderID("")
	assert.False(t, ok)
	_, ok = r.LookupByOrderID("v-missing")
	assert.False(t, ok)
}

func TestProcessingMarkerSingleWinner(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))

	const workers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.TryBeginProcessing("c-1") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	r.EndProcessing("c-1")
	assert.True(t, r.TryBeginProcessing("c-1"))
}

func TestProcessingMarkerUnknownOrder(t *testing.T) {
	r := New()
	assert.False(t, r.TryBeginProcessing("missing"))
	// releasing an unknown id must not panic
	r.EndProcessing("missing")
}

func TestRemoveWhileProcessing(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))
	require.True(t, r.TryBeginProcessing("c-1"))

	r.Remove("c-1")
	r.EndProcessing("c-1")

	_, ok := r.Lookup("c-1")
	assert.False(t, ok)
}

func TestReleaseAllMarkers(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))
	require.NoError(t, r.Register(newOrder("c-2")))
	require.True(t, r.TryBeginProcessing("c-1"))
	require.True(t, r.TryBeginProcessing("c-2"))

	r.ReleaseAllMarkers()

	assert.True(t, r.TryBeginProcessing("c-1"))
	assert.True(t, r.TryBeginProcessing("c-2"))
}

func TestOrdersSnapshot(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(newOrder("c-1")))
	require.NoError(t, r.Register(newOrder("c-2")))

	orders := r.Orders()
	require.Len(t, orders, 2)
	for i := range orders {
		orders[i].State = enum.OrderStateFilled
	}

	ord, ok := r.Lookup("c-1")
	require.True(t, ok)
	assert.Equal(t, enum.OrderStatePendingSubmit, ord.State)
}
