package exception

import "errors"

var (
	ErrOrderDuplicateClientID  = errors.New("order: duplicate client order id")
	ErrOrderUnknownClientID    = errors.New("order: unknown client order id")
	ErrOrderInvalidTransition  = errors.New("order: invalid state transition")
	ErrOrderInvalidFill        = errors.New("order: invalid fill quantity")
	ErrOrderAlreadyTerminal    = errors.New("order: already in terminal state")
	ErrOrderProcessingInFlight = errors.New("order: processing already in flight")
	ErrOrderInvalidRequest     = errors.New("order: invalid request")
	ErrOrderRejected           = errors.New("order: rejected by venue")
	ErrOrderCancelRejected     = errors.New("order: cancel rejected by venue")
)
