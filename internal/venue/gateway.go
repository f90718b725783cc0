package venue

import (
	"context"

	"main/internal/adapter"
)

// Channel identifies one subscription stream.
type Channel uint8

const (
	_channel_beg Channel = iota
	ChannelOrders
	ChannelTrades
	ChannelBalances
	ChannelSubmitAcks
	ChannelCancelAcks
	_channel_end
)

func (c Channel) IsAvailable() bool {
	return c > _channel_beg && c < _channel_end
}

func (c Channel) String() string {
	switch c {
	case ChannelOrders:
		return "orders"
	case ChannelTrades:
		return "trades"
	case ChannelBalances:
		return "balances"
	case ChannelSubmitAcks:
		return "submit_acks"
	case ChannelCancelAcks:
		return "cancel_acks"
	default:
		return "unknown"
	}
}

// Channels lists every subscription stream the supervisor runs.
func Channels() []Channel {
	return []Channel{
		ChannelOrders,
		ChannelTrades,
		ChannelBalances,
		ChannelSubmitAcks,
		ChannelCancelAcks,
	}
}

// Gateway is the venue boundary. Implementations own the wire protocol and
// deliver strongly-typed messages; nothing stringly-typed crosses this
// interface.
//
// Subscribe returns a channel that is closed when the stream drops. The
// supervisor resubscribes with backoff; a fatal error (authentication) is
// returned wrapped with exception.ErrStreamFatal so it is escalated instead
// of retried.
type Gateway interface {
	Connect(ctx context.Context) error
	Close()

	SubmitOrder(ctx context.Context, order adapter.Order) (SubmitAck, error)
	CancelOrder(ctx context.Context, clientOrderID, orderID string) (CancelAck, error)
	QueryOpenOrders(ctx context.Context) ([]OrderSnapshot, error)
	QueryInstruments(ctx context.Context) ([]Instrument, error)

	Subscribe(ctx context.Context, channel Channel) (<-chan Message, error)

	// SessionDown signals loss of the whole venue session, beyond what
	// per-stream resubscription can recover. The channel delivers at most one
	// error per session and is replaced by the next successful Connect.
	SessionDown() <-chan error
}
