package venue

import (
	"main/internal/adapter"

	"github.com/shopspring/decimal"
)

// OrderStatus is the venue-reported status, already parsed from the raw
// payload. Stringly-typed decoding stays inside the venue implementation.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusSubmitted
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
)

// MessageKind tags the variant carried by a Message.
type MessageKind uint8

const (
	KindUnknown MessageKind = iota
	KindOrderUpdate
	KindTradeUpdate
	KindBalanceUpdate
	KindSubmitAck
	KindCancelAck
)

// Message is the tagged variant delivered by subscription streams. Exactly
// one payload pointer is non-nil, matching Kind.
type Message struct {
	Kind    MessageKind
	Order   *OrderUpdate
	Trade   *TradeUpdate
	Balance *BalanceUpdate
	Submit  *SubmitAck
	Cancel  *CancelAck
}

// OrderUpdate reports an order status change on the order-watch stream.
type OrderUpdate struct {
	ClientOrderID string
	OrderID       string
	Status        OrderStatus
	Reason        string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	TsNano        int64
}

// TradeUpdate reports a single execution on the trade-watch stream.
type TradeUpdate struct {
	TradeID       string
	ClientOrderID string
	OrderID       string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	TsNano        int64
}

// BalanceUpdate carries a full balance snapshot.
type BalanceUpdate struct {
	Balances []adapter.Balance
	TsNano   int64
}

// SubmitAck acknowledges a submit request, either from the synchronous
// response or from the create-order ack stream.
type SubmitAck struct {
	ClientOrderID string
	OrderID       string
	Accepted      bool
	Reason        string
	TsNano        int64
}

// CancelAck acknowledges a cancel request.
type CancelAck struct {
	ClientOrderID string
	OrderID       string
	Canceled      bool
	Reason        string
	TsNano        int64
}

// OrderSnapshot is one entry of the post-reconnect order query. It includes
// recently closed orders so transitions missed while disconnected can be
// reconciled.
type OrderSnapshot struct {
	ClientOrderID string
	OrderID       string
	Status        OrderStatus
	Reason        string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	AvgFillPrice  decimal.Decimal
	TsNano        int64
}

// Instrument is venue trading-rule metadata, refreshed on a fixed interval.
type Instrument struct {
	Symbol      adapter.Symbol
	PriceStep   decimal.Decimal
	QtyStep     decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}
