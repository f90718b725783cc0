package bridge

import (
	"context"
	"fmt"
	"time"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/venue"

	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// SubmitRequest describes a new order to place. ClientOrderID is generated
// when empty; TimeInForce defaults to GTC.
type SubmitRequest struct {
	ClientOrderID string
	Symbol        adapter.Symbol
	Side          enum.OrderSide
	Type          enum.OrderType
	TimeInForce   enum.OrderTimeInForce
	Price         decimal.Decimal
	Quantity      decimal.Decimal
}

func (r SubmitRequest) validate() error {
	if r.Symbol.IsZero() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "missing symbol")
	}
	if !r.Side.IsAvailable() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "invalid side")
	}
	if !r.Type.IsAvailable() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "invalid type")
	}
	if !r.Quantity.IsPositive() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "non-positive quantity")
	}
	if r.Type == enum.OrderTypeLimit && !r.Price.IsPositive() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "non-positive limit price")
	}
	return nil
}

// NewClientOrderID builds a unique client order id from the session request
// counter and a random suffix.
func (b *Bridge) NewClientOrderID() string {
	return fmt.Sprintf("%s-%d-%s", b.cfg.ClientOrderPrefix, b.seq.Add(1), uuid.NewString()[:8])
}

// SubmitOrder registers and places a new order. The order enters the
// registry as PendingSubmit before the request reaches the wire, so stream
// notifications racing the synchronous response always find it. The returned
// order reflects the registry right after the response was translated.
//
// A timed-out request keeps the order registered: the venue may still have
// received it, and either the ack streams or the next reconciliation sweep
// settles it.
func (b *Bridge) SubmitOrder(ctx context.Context, req SubmitRequest) (adapter.Order, error) {
	if b.Status() != StateConnected {
		return adapter.Order{}, errors.Wrap(exception.ErrConnNotConnected, "submit order")
	}
	if err := req.validate(); err != nil {
		return adapter.Order{}, err
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = b.NewClientOrderID()
	}
	if !req.TimeInForce.IsAvailable() {
		req.TimeInForce = enum.OrderTimeInForceGTC
	}

	now := time.Now().UnixNano()
	order := &adapter.Order{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		State:         enum.OrderStatePendingSubmit,
		Price:         req.Price,
		Quantity:      req.Quantity,
		CreatedTsNano: now,
		UpdatedTsNano: now,
	}
	if err := b.reg.Register(order); err != nil {
		return adapter.Order{}, errors.Wrap(err, "register order")
	}

	rctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	start := time.Now()
	ack, err := b.gw.SubmitOrder(rctx, *order)
	b.metrics.ObserveRequest(time.Since(start))
	if err != nil {
		if isTimeout(err) {
			return *order, errors.Wrap(exception.ErrRequestTimeout, "submit order")
		}
		// the request never reached the venue, settle the order locally
		b.tr.OnRejected(req.ClientOrderID, err.Error(), time.Now().UnixNano())
		return adapter.Order{}, errors.Wrap(err, "submit order")
	}

	b.tr.OnSubmitAck(ack)
	if !ack.Accepted {
		return adapter.Order{}, errors.Wrapf(exception.ErrOrderRejected, "%s", ack.Reason)
	}
	if current, ok := b.reg.Lookup(req.ClientOrderID); ok {
		return current, nil
	}
	// already terminal, stream events landed between ack and lookup
	return *order, nil
}

// CancelOrder requests cancelation of a tracked order. The terminal
// OrderCanceled event is emitted when the ack is translated, here or on the
// cancel-ack stream, whichever admits first.
func (b *Bridge) CancelOrder(ctx context.Context, clientOrderID string) error {
	if b.Status() != StateConnected {
		return errors.Wrap(exception.ErrConnNotConnected, "cancel order")
	}
	ord, ok := b.reg.Lookup(clientOrderID)
	if !ok {
		return errors.Wrap(exception.ErrOrderUnknownClientID, "cancel order")
	}

	rctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	start := time.Now()
	ack, err := b.gw.CancelOrder(rctx, clientOrderID, ord.OrderID)
	b.metrics.ObserveRequest(time.Since(start))
	if err != nil {
		if isTimeout(err) {
			// the cancel may still execute; the ack stream settles it
			return errors.Wrap(exception.ErrRequestTimeout, "cancel order")
		}
		return errors.Wrap(err, "cancel order")
	}

	b.tr.HandleMessage(venue.Message{Kind: venue.KindCancelAck, Cancel: &ack})
	if !ack.Canceled {
		return errors.Wrapf(exception.ErrOrderCancelRejected, "%s", ack.Reason)
	}
	return nil
}
