package events

import (
	"main/internal/adapter"

	"github.com/shopspring/decimal"
)

// Type identifies the kind of a translated domain event.
type Type uint16

const (
	TypeUnknown Type = iota
	TypeOrderSubmitted
	TypeOrderAccepted
	TypeOrderRejected
	TypeOrderPartiallyFilled
	TypeOrderFilled
	TypeOrderCanceled
	TypeAccountStateChanged
)

func (t Type) String() string {
	switch t {
	case TypeOrderSubmitted:
		return "order_submitted"
	case TypeOrderAccepted:
		return "order_accepted"
	case TypeOrderRejected:
		return "order_rejected"
	case TypeOrderPartiallyFilled:
		return "order_partially_filled"
	case TypeOrderFilled:
		return "order_filled"
	case TypeOrderCanceled:
		return "order_canceled"
	case TypeAccountStateChanged:
		return "account_state_changed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the event closes an order lifecycle.
func (t Type) IsTerminal() bool {
	switch t {
	case TypeOrderRejected, TypeOrderFilled, TypeOrderCanceled:
		return true
	default:
		return false
	}
}

// Event is the unit emitted toward the orchestration layer.
type Event struct {
	Type          Type
	ClientOrderID string
	OrderID       string
	TsNano        int64

	// order payloads
	Reason    string
	FillQty   decimal.Decimal
	FillPrice decimal.Decimal
	FilledQty decimal.Decimal
	LeavesQty decimal.Decimal

	// account payload
	Account *adapter.AccountState
}

// Sink receives translated domain events.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }
