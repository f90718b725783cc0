package adapter

import (
	"main/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// Order is the local view of a venue order. It is owned by the registry and
// mutated only through translator transitions while the processing marker is
// held.
type Order struct {
	ClientOrderID string
	OrderID       string // venue-assigned, empty until accepted, set at most once
	Symbol        Symbol
	Side          enum.OrderSide
	Type          enum.OrderType
	TimeInForce   enum.OrderTimeInForce
	State         enum.OrderState
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	AvgFillPrice  decimal.Decimal
	CreatedTsNano int64
	UpdatedTsNano int64
}

// LeavesQty returns the quantity still open on the venue.
func (o Order) LeavesQty() decimal.Decimal {
	left := o.Quantity.Sub(o.FilledQty)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

func (o Order) IsTerminal() bool {
	return o.State.IsTerminal()
}

// ApplyFill accumulates a fill and returns the resulting state.
// The cumulative filled quantity is clamped to the order quantity.
func (o *Order) ApplyFill(qty, price decimal.Decimal, tsNano int64) enum.OrderState {
	prevNotional := o.AvgFillPrice.Mul(o.FilledQty)
	o.FilledQty = o.FilledQty.Add(qty)
	if o.FilledQty.GreaterThan(o.Quantity) {
		o.FilledQty = o.Quantity
	}
	if o.FilledQty.IsPositive() {
		o.AvgFillPrice = prevNotional.Add(price.Mul(qty)).Div(o.FilledQty)
	}
	if o.FilledQty.GreaterThanOrEqual(o.Quantity) {
		o.State = enum.OrderStateFilled
	} else {
		o.State = enum.OrderStatePartiallyFilled
	}
	o.UpdatedTsNano = tsNano
	return o.State
}
