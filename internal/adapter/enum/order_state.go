package enum

// OrderState tracks the local order lifecycle.
//
// PendingSubmit -> Submitted -> Accepted -> PartiallyFilled -> Filled
// Rejected may follow PendingSubmit or Submitted.
// Canceled may follow Accepted or PartiallyFilled.
// Filled, Rejected and Canceled are terminal.
type OrderState uint8

const (
	_order_state_beg OrderState = iota
	OrderStatePendingSubmit
	OrderStateSubmitted
	OrderStateAccepted
	OrderStatePartiallyFilled
	OrderStateFilled
	OrderStateRejected
	OrderStateCanceled
	_order_state_end
)

func (s OrderState) IsAvailable() bool {
	return s > _order_state_beg && s < _order_state_end
}

func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderStateFilled, OrderStateRejected, OrderStateCanceled:
		return true
	default:
		return false
	}
}

func (s OrderState) String() string {
	switch s {
	case OrderStatePendingSubmit:
		return "pending_submit"
	case OrderStateSubmitted:
		return "submitted"
	case OrderStateAccepted:
		return "accepted"
	case OrderStatePartiallyFilled:
		return "partially_filled"
	case OrderStateFilled:
		return "filled"
	case OrderStateRejected:
		return "rejected"
	case OrderStateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
