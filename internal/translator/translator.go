package translator

import (
	"sync/atomic"
	"time"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/events"
	"main/internal/obs"
	"main/internal/registry"
	"main/internal/venue"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

// Translator converts venue messages into canonical domain events and the
// registry mutations they imply. Every lifecycle-changing transition is
// admitted through the registry's processing marker, so two streams racing
// to report the same fact produce exactly one event.
type Translator struct {
	reg     *registry.Registry
	sink    events.Sink
	metrics *obs.Metrics
	pending *pendingFills
	account atomic.Pointer[adapter.AccountState]
}

// Config tunes translator behavior.
type Config struct {
	// FillBufferTTL bounds how long a fill may wait for its acceptance.
	FillBufferTTL time.Duration
}

func New(reg *registry.Registry, sink events.Sink, metrics *obs.Metrics, cfg Config) *Translator {
	return &Translator{
		reg:     reg,
		sink:    sink,
		metrics: metrics,
		pending: newPendingFills(cfg.FillBufferTTL),
	}
}

// Account returns the most recently received account snapshot.
func (t *Translator) Account() (adapter.AccountState, bool) {
	p := t.account.Load()
	if p == nil {
		return adapter.AccountState{}, false
	}
	return *p, true
}

// PendingFillCount reports how many orders have parked fills.
func (t *Translator) PendingFillCount() int {
	return t.pending.Len()
}

// HandleMessage routes one stream message to its transition.
func (t *Translator) HandleMessage(msg venue.Message) {
	start := time.Now()
	defer func() {
		t.metrics.ObserveTranslate(time.Since(start))
	}()

	switch msg.Kind {
	case venue.KindOrderUpdate:
		t.onOrderUpdate(*msg.Order)
	case venue.KindTradeUpdate:
		t.OnFilled(*msg.Trade)
	case venue.KindBalanceUpdate:
		t.OnAccountState(*msg.Balance)
	case venue.KindSubmitAck:
		t.OnSubmitAck(*msg.Submit)
	case venue.KindCancelAck:
		t.onCancelAck(*msg.Cancel)
	default:
		logs.Warnf("translator: unknown message kind %d", msg.Kind)
	}
}

func (t *Translator) onOrderUpdate(u venue.OrderUpdate) {
	id := t.resolveClientID(u.ClientOrderID, u.OrderID)
	switch u.Status {
	case venue.OrderStatusSubmitted:
		t.OnSubmitted(id, u.TsNano)
	case venue.OrderStatusAccepted:
		t.OnAccepted(id, u.OrderID, u.TsNano)
	case venue.OrderStatusRejected:
		t.OnRejected(id, u.Reason, u.TsNano)
	case venue.OrderStatusCanceled:
		t.OnCanceled(id, u.Reason, u.TsNano)
	case venue.OrderStatusPartiallyFilled, venue.OrderStatusFilled:
		t.onCumulativeFill(id, u)
	default:
		logs.Warnf("translator: unknown order status for %s", id)
	}
}

// OnSubmitAck handles the synchronous submit response and the create-order
// ack stream, whichever lands first.
func (t *Translator) OnSubmitAck(ack venue.SubmitAck) {
	if !ack.Accepted {
		t.OnRejected(ack.ClientOrderID, ack.Reason, ack.TsNano)
		return
	}
	t.OnSubmitted(ack.ClientOrderID, ack.TsNano)
	if ack.OrderID != "" {
		t.OnAccepted(ack.ClientOrderID, ack.OrderID, ack.TsNano)
	}
}

func (t *Translator) onCancelAck(ack venue.CancelAck) {
	id := t.resolveClientID(ack.ClientOrderID, ack.OrderID)
	if !ack.Canceled {
		// cancel rejected: the order stays as-is, the caller observes it via
		// the submit/cancel result path
		logs.Warnf("translator: cancel rejected for %s: %s", id, ack.Reason)
		return
	}
	t.OnCanceled(id, ack.Reason, ack.TsNano)
}

// begin acquires the processing marker, classifying a failed acquisition as
// either an unknown order or a concurrent duplicate.
func (t *Translator) begin(op, clientOrderID string) bool {
	if t.reg.TryBeginProcessing(clientOrderID) {
		return true
	}
	if _, ok := t.reg.Lookup(clientOrderID); !ok {
		t.dropSemantic(op, clientOrderID, "unknown order")
	} else {
		t.dropDuplicate(op, clientOrderID)
	}
	return false
}

// OnSubmitted transitions PendingSubmit -> Submitted.
func (t *Translator) OnSubmitted(clientOrderID string, tsNano int64) {
	if !t.begin("submitted", clientOrderID) {
		return
	}
	defer t.reg.EndProcessing(clientOrderID)

	ord, ok := t.reg.Lookup(clientOrderID)
	if !ok {
		t.dropSemantic("submitted", clientOrderID, "unknown order")
		return
	}
	if ord.State != enum.OrderStatePendingSubmit {
		// late or duplicate notification
		t.dropSemantic("submitted", clientOrderID, "state "+ord.State.String())
		return
	}

	t.reg.Mutate(clientOrderID, func(o *adapter.Order) {
		o.State = enum.OrderStateSubmitted
		o.UpdatedTsNano = tsNano
	})
	t.emit(events.Event{
		Type:          events.TypeOrderSubmitted,
		ClientOrderID: clientOrderID,
		TsNano:        tsNano,
	})
}

// OnAccepted assigns the venue order id (first-write-wins) and transitions
// to Accepted. Fills parked for the order are applied afterwards while the
// marker is still held.
func (t *Translator) OnAccepted(clientOrderID, orderID string, tsNano int64) {
	if !t.begin("accepted", clientOrderID) {
		return
	}
	defer t.reg.EndProcessing(clientOrderID)

	ord, ok := t.reg.Lookup(clientOrderID)
	if !ok {
		t.dropSemantic("accepted", clientOrderID, "unknown order")
		return
	}
	if ord.OrderID != "" {
		// duplicate acceptance, the original assignment stands
		t.dropSemantic("accepted", clientOrderID, "order id already assigned")
		return
	}
	if ord.State.IsTerminal() {
		t.dropSemantic("accepted", clientOrderID, "state "+ord.State.String())
		return
	}

	t.reg.Mutate(clientOrderID, func(o *adapter.Order) {
		o.OrderID = orderID
		o.State = enum.OrderStateAccepted
		o.UpdatedTsNano = tsNano
	})
	t.emit(events.Event{
		Type:          events.TypeOrderAccepted,
		ClientOrderID: clientOrderID,
		OrderID:       orderID,
		TsNano:        tsNano,
	})

	for _, trade := range t.pending.Take(clientOrderID) {
		t.applyFill(clientOrderID, trade.Quantity, trade.Price, trade.TsNano)
	}
}

// OnRejected transitions to the terminal Rejected state and removes the
// order from the registry.
func (t *Translator) OnRejected(clientOrderID, reason string, tsNano int64) {
	if !t.begin("rejected", clientOrderID) {
		return
	}
	defer t.reg.EndProcessing(clientOrderID)

	ord, ok := t.reg.Lookup(clientOrderID)
	if !ok {
		t.dropSemantic("rejected", clientOrderID, "unknown order")
		return
	}
	if ord.State.IsTerminal() {
		t.dropSemantic("rejected", clientOrderID, "state "+ord.State.String())
		return
	}

	t.pending.Drop(clientOrderID)
	t.reg.Remove(clientOrderID)
	t.emit(events.Event{
		Type:          events.TypeOrderRejected,
		ClientOrderID: clientOrderID,
		OrderID:       ord.OrderID,
		Reason:        reason,
		TsNano:        tsNano,
	})
}

// OnCanceled transitions to the terminal Canceled state.
func (t *Translator) OnCanceled(clientOrderID, reason string, tsNano int64) {
	if !t.begin("canceled", clientOrderID) {
		return
	}
	defer t.reg.EndProcessing(clientOrderID)

	ord, ok := t.reg.Lookup(clientOrderID)
	if !ok {
		t.dropSemantic("canceled", clientOrderID, "unknown order")
		return
	}
	if ord.State.IsTerminal() {
		t.dropSemantic("canceled", clientOrderID, "state "+ord.State.String())
		return
	}

	t.pending.Drop(clientOrderID)
	t.reg.Remove(clientOrderID)
	t.emit(events.Event{
		Type:          events.TypeOrderCanceled,
		ClientOrderID: clientOrderID,
		OrderID:       ord.OrderID,
		Reason:        reason,
		LeavesQty:     ord.LeavesQty(),
		TsNano:        tsNano,
	})
}

// OnFilled applies one execution from the trade-watch stream. A fill that
// arrives before the acceptance is parked up to the configured TTL.
func (t *Translator) OnFilled(trade venue.TradeUpdate) {
	id := t.resolveClientID(trade.ClientOrderID, trade.OrderID)
	if _, ok := t.reg.Lookup(id); !ok {
		logs.Warnf("translator: fill for unknown order %q, discarded", id)
		t.metrics.IncSemanticDrop()
		return
	}
	if !t.begin("filled", id) {
		return
	}
	defer t.reg.EndProcessing(id)

	ord, ok := t.reg.Lookup(id)
	if !ok {
		t.dropSemantic("filled", id, "unknown order")
		return
	}
	switch ord.State {
	case enum.OrderStatePendingSubmit, enum.OrderStateSubmitted:
		trade.ClientOrderID = id
		t.pending.Park(trade, time.Now())
		t.metrics.IncBufferedFill()
		logs.Debugf("translator: fill before acceptance for %s, buffered", id)
		return
	}
	if ord.State.IsTerminal() {
		t.dropSemantic("filled", id, "state "+ord.State.String())
		return
	}

	t.applyFill(id, trade.Quantity, trade.Price, trade.TsNano)
}

// onCumulativeFill converts an order-stream fill report (cumulative filled
// quantity) into a delta. A non-positive delta means the trade stream
// already reported this execution.
func (t *Translator) onCumulativeFill(clientOrderID string, u venue.OrderUpdate) {
	if !t.begin("filled", clientOrderID) {
		return
	}
	defer t.reg.EndProcessing(clientOrderID)

	ord, ok := t.reg.Lookup(clientOrderID)
	if !ok {
		t.dropSemantic("filled", clientOrderID, "unknown order")
		return
	}
	if ord.State.IsTerminal() {
		t.dropSemantic("filled", clientOrderID, "state "+ord.State.String())
		return
	}

	delta := u.FilledQty.Sub(ord.FilledQty)
	if !delta.IsPositive() {
		// already applied via the trade stream
		t.dropSemantic("filled", clientOrderID, "stale cumulative quantity")
		return
	}
	switch ord.State {
	case enum.OrderStatePendingSubmit, enum.OrderStateSubmitted:
		t.pending.Park(venue.TradeUpdate{
			ClientOrderID: clientOrderID,
			OrderID:       u.OrderID,
			Price:         u.Price,
			Quantity:      delta,
			TsNano:        u.TsNano,
		}, time.Now())
		t.metrics.IncBufferedFill()
		return
	}

	t.applyFill(clientOrderID, delta, u.Price, u.TsNano)
}

// applyFill mutates fill progress and emits the matching event. The caller
// holds the processing marker.
func (t *Translator) applyFill(clientOrderID string, qty, price decimal.Decimal, tsNano int64) {
	if !qty.IsPositive() {
		t.dropSemantic("filled", clientOrderID, "non-positive fill quantity")
		return
	}

	var after adapter.Order
	if !t.reg.Mutate(clientOrderID, func(o *adapter.Order) {
		o.ApplyFill(qty, price, tsNano)
		after = *o
	}) {
		t.dropSemantic("filled", clientOrderID, "unknown order")
		return
	}

	ev := events.Event{
		ClientOrderID: clientOrderID,
		OrderID:       after.OrderID,
		FillQty:       qty,
		FillPrice:     price,
		FilledQty:     after.FilledQty,
		LeavesQty:     after.LeavesQty(),
		TsNano:        tsNano,
	}
	if after.State == enum.OrderStateFilled {
		ev.Type = events.TypeOrderFilled
		t.pending.Drop(clientOrderID)
		t.reg.Remove(clientOrderID)
	} else {
		ev.Type = events.TypeOrderPartiallyFilled
	}
	t.emit(ev)
}

// OnAccountState replaces the account snapshot wholesale. Balance updates
// carry no ordering dependency on order events and bypass the order gate.
func (t *Translator) OnAccountState(u venue.BalanceUpdate) {
	snapshot := &adapter.AccountState{
		Balances: u.Balances,
		TsNano:   u.TsNano,
	}
	t.account.Store(snapshot)
	t.emit(events.Event{
		Type:    events.TypeAccountStateChanged,
		TsNano:  u.TsNano,
		Account: snapshot,
	})
}

// ExpirePendingFills drops parked fills whose acceptance never arrived.
// The bridge calls this on a fixed interval.
func (t *Translator) ExpirePendingFills(now time.Time) {
	for id, n := range t.pending.Expire(now) {
		for range n {
			t.metrics.IncExpiredFill()
		}
		logs.Warnf("translator: dropped %d buffered fill(s) for %s, acceptance never arrived", n, id)
	}
}

func (t *Translator) resolveClientID(clientOrderID, orderID string) string {
	if clientOrderID != "" {
		return clientOrderID
	}
	if ord, ok := t.reg.LookupByOrderID(orderID); ok {
		return ord.ClientOrderID
	}
	return clientOrderID
}

func (t *Translator) emit(ev events.Event) {
	t.metrics.IncEvent(ev.Type)
	if t.sink != nil {
		t.sink.Emit(ev)
	}
}

func (t *Translator) dropDuplicate(op, clientOrderID string) {
	t.metrics.IncDuplicateDrop()
	logs.Debugf("translator: concurrent %s notification for %s, discarded", op, clientOrderID)
}

func (t *Translator) dropSemantic(op, clientOrderID, detail string) {
	t.metrics.IncSemanticDrop()
	logs.Debugf("translator: %s for %s discarded: %s", op, clientOrderID, detail)
}
