package translator

import (
	"sync"
	"testing"
	"time"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/events"
	"main/internal/obs"
	"main/internal/registry"
	"main/internal/venue"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func (s *captureSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func setup(t *testing.T, cfg Config) (*Translator, *registry.Registry, *captureSink, *obs.Metrics) {
	t.Helper()
	reg := registry.New()
	sink := &captureSink{}
	metrics := obs.NewMetrics()
	return New(reg, sink, metrics, cfg), reg, sink, metrics
}

func registerOrder(t *testing.T, reg *registry.Registry, clientID string) {
	t.Helper()
	require.NoError(t, reg.Register(&adapter.Order{
		ClientOrderID: clientID,
		Symbol:        adapter.NewSymbol("SOL", "USDT"),
		Side:          enum.OrderSideBuy,
		Type:          enum.OrderTypeLimit,
		State:         enum.OrderStatePendingSubmit,
		Price:         dec("100"),
		Quantity:      dec("2"),
	}))
}

func TestLifecycleSubmitAcceptFill(t *testing.T) {
	tr, reg, sink, _ := setup(t, Config{})
	registerOrder(t, reg, "c-1")

	tr.OnSubmitAck(venue.SubmitAck{ClientOrderID: "c-1", OrderID: "v-1", Accepted: true, TsNano: 1})

	ord, ok := reg.Lookup("c-1")
	require.True(t, ok)
	assert.Equal(t, enum.OrderStateAccepted, ord.State)
	assert.Equal(t, "v-1", ord.OrderID)

	tr.OnFilled(venue.TradeUpdate{ClientOrderID: "c-1", Price: dec("99"), Quantity: dec("0.5"), TsNano: 2})
	tr.OnFilled(venue.TradeUpdate{ClientOrderID: "c-1", Price: dec("101"), Quantity: dec("1.5"), TsNano: 3})

	assert.Equal(t, []events.Type{
		events.TypeOrderSubmitted,
		events.TypeOrderAccepted,
		events.TypeOrderPartiallyFilled,
		events.TypeOrderFilled,
	}, sink.types())

	all := sink.all()
	partial := all[2]
	assert.True(t, partial.FillQty.Equal(dec("0.5")))
	assert.True(t, partial.LeavesQty.Equal(dec("1.5")))
	filled := all[3]
	assert.True(t, filled.FilledQty.Equal(dec("2")))
	assert.True(t, filled.LeavesQty.IsZero())

	// terminal orders leave the registry
	_, ok = reg.Lookup("c-1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestFillForUnknownOrderDiscarded(t *testing.T) {
	tr, _, sink, metrics := setup(t, Config{})

	tr.OnFilled(venue.TradeUpdate{ClientOrderID: "c-99", Price: dec("100"), Quantity: dec("1"), TsNano: 1})

	assert.Empty(t, sink.types())
	assert.GreaterOrEqual(t, metrics.Snapshot().SemanticDrops, uint64(1))
}

func TestOrderIDFirstWriteWins(t *testing.T) {
	tr, reg, sink, metrics := setup(t, Config{})
	registerOrder(t, reg, "c-1")

	tr.OnAccepted("c-1", "v-1", 1)
	tr.OnAccepted("c-1", "v-2", 2)

	ord, ok := reg.Lookup("c-1")
	require.True(t, ok)
	assert.Equal(t, "v-1", ord.OrderID)
	assert.Equal(t, []events.Type{events.TypeOrderAccepted}, sink.types())
	assert.GreaterOrEqual(t, metrics.Snapshot().SemanticDrops, uint64(1))
}

func TestCumulativeFillDeduped(t *testing.T) {
	tr, reg, sink, _ := setup(t, Config{})
	registerOrder(t, reg, "c-1")
	tr.OnAccepted("c-1", "v-1", 1)

	// trade stream reports the execution first
	tr.OnFilled(venue.TradeUpdate{ClientOrderID: "c-1", Price: dec("100"), Quantity: dec("0.5"), TsNano: 2})

	// order stream repeats the same progress as a cumulative quantity
	tr.HandleMessage(venue.Message{Kind: venue.KindOrderUpdate, Order: &venue.OrderUpdate{
		ClientOrderID: "c-1",
		OrderID:       "v-1",
		Status:        venue.OrderStatusPartiallyFilled,
		Price:         dec("100"),
		Quantity:      dec("2"),
		FilledQty:     dec("0.5"),
		TsNano:        3,
	}})
	assert.Equal(t, []events.Type{
		events.TypeOrderAccepted,
		events.TypeOrderPartiallyFilled,
	}, sink.types())

	// the order stream then advances beyond the trade stream
	tr.HandleMessage(venue.Message{Kind: venue.KindOrderUpdate, Order: &venue.OrderUpdate{
		ClientOrderID: "c-1",
		OrderID:       "v-1",
		Status:        venue.OrderStatusFilled,
		Price:         dec("100"),
		Quantity:      dec("2"),
		FilledQty:     dec("2"),
		TsNano:        4,
	}})

	types := sink.types()
	require.Len(t, types, 3)
	assert.Equal(t, events.TypeOrderFilled, types[2])

	filled := sink.all()[2]
	assert.True(t, filled.FillQty.Equal(dec("1.5")), "only the delta is applied")
	_, ok := reg.Lookup("c-1")
	assert.False(t, ok)
}

func TestFillBeforeAcceptanceBuffered(t *testing.T) {
	tr, reg, sink, metrics := setup(t, Config{})
	registerOrder(t, reg, "c-1")

	// submitted, not yet accepted
	tr.OnSubmitAck(venue.SubmitAck{ClientOrderID: "c-1", Accepted: true, TsNano: 1})

	tr.OnFilled(venue.TradeUpdate{ClientOrderID: "c-1", Price: dec("100"), Quantity: dec("0.5"), TsNano: 2})
	assert.Equal(t, []events.Type{events.TypeOrderSubmitted}, sink.types())
	assert.Equal(t, 1, tr.PendingFillCount())
	assert.Equal(t, uint64(1), metrics.Snapshot().BufferedFills)

	// acceptance flushes the parked fill
	tr.OnAccepted("c-1", "v-1", 3)
	assert.Equal(t, []events.Type{
		events.TypeOrderSubmitted,
		events.TypeOrderAccepted,
		events.TypeOrderPartiallyFilled,
	}, sink.types())
	assert.Equal(t, 0, tr.PendingFillCount())

	ord, ok := reg.Lookup("c-1")
	require.True(t, ok)
	assert.True(t, ord.FilledQty.Equal(dec("0.5")))
}

func TestBufferedFillExpires(t *testing.T) {
	tr, reg, sink, metrics := setup(t, Config{FillBufferTTL: 10 * time.Millisecond})
	registerOrder(t, reg, "c-1")
	tr.OnSubmitted("c-1", 1)

	tr.OnFilled(venue.TradeUpdate{ClientOrderID: "c-1", Price: dec("100"), Quantity: dec("0.5"), TsNano: 2})
	require.Equal(t, 1, tr.PendingFillCount())

	tr.ExpirePendingFills(time.Now().Add(time.Second))

	assert.Equal(t, 0, tr.PendingFillCount())
	assert.Equal(t, uint64(1), metrics.Snapshot().ExpiredFills)
	assert.Equal(t, []events.Type{events.TypeOrderSubmitted}, sink.types())
}

func TestCancelEmitsTerminalOnce(t *testing.T) {
	tr, reg, sink, _ := setup(t, Config{})
	registerOrder(t, reg, "c-1")
	tr.OnAccepted("c-1", "v-1", 1)

	tr.OnCanceled("c-1", "user requested", 2)
	tr.OnCanceled("c-1", "user requested", 3)

	assert.Equal(t, []events.Type{
		events.TypeOrderAccepted,
		events.TypeOrderCanceled,
	}, sink.types())

	canceled := sink.all()[1]
	assert.Equal(t, "user requested", canceled.Reason)
	assert.True(t, canceled.LeavesQty.Equal(dec("2")))
	_, ok := reg.Lookup("c-1")
	assert.False(t, ok)
}

func TestRejectBeforeSubmitAck(t *testing.T) {
	tr, reg, sink, _ := setup(t, Config{})
	registerOrder(t, reg, "c-1")

	tr.OnRejected("c-1", "insufficient balance", 1)

	assert.Equal(t, []events.Type{events.TypeOrderRejected}, sink.types())
	assert.Equal(t, "insufficient balance", sink.all()[0].Reason)
	assert.Equal(t, 0, reg.Len())
}

func TestCancelAckRejectedKeepsOrder(t *testing.T) {
	tr, reg, sink, _ := setup(t, Config{})
	registerOrder(t, reg, "c-1")
	tr.OnAccepted("c-1", "v-1", 1)

	tr.HandleMessage(venue.Message{Kind: venue.KindCancelAck, Cancel: &venue.CancelAck{
		ClientOrderID: "c-1",
		Canceled:      false,
		Reason:        "already filled",
		TsNano:        2,
	}})

	assert.Equal(t, []events.Type{events.TypeOrderAccepted}, sink.types())
	_, ok := reg.Lookup("c-1")
	assert.True(t, ok)
}

func TestTradeRoutedByVenueOrderID(t *testing.T) {
	tr, reg, sink, _ := setup(t, Config{})
	registerOrder(t, reg, "c-1")
	tr.OnAccepted("c-1", "v-1", 1)

	tr.OnFilled(venue.TradeUpdate{OrderID: "v-1", Price: dec("100"), Quantity: dec("2"), TsNano: 2})

	types := sink.types()
	require.Len(t, types, 2)
	assert.Equal(t, events.TypeOrderFilled, types[1])
	_, ok := reg.Lookup("c-1")
	assert.False(t, ok)
}

func TestAccountSnapshotReplacedWholesale(t *testing.T) {
	tr, _, sink, _ := setup(t, Config{})

	tr.OnAccountState(venue.BalanceUpdate{
		Balances: []adapter.Balance{{Asset: "USDT", Available: dec("100")}},
		TsNano:   1,
	})
	tr.OnAccountState(venue.BalanceUpdate{
		Balances: []adapter.Balance{{Asset: "SOL", Available: dec("3")}},
		TsNano:   2,
	})

	account, ok := tr.Account()
	require.True(t, ok)
	require.Len(t, account.Balances, 1)
	assert.Equal(t, "SOL", account.Balances[0].Asset)
	assert.Equal(t, int64(2), account.TsNano)

	assert.Equal(t, []events.Type{
		events.TypeAccountStateChanged,
		events.TypeAccountStateChanged,
	}, sink.types())
}
