package streams

import (
	"context"
	"sync"
	"testing"
	"time"

	"main/internal/adapter"
	"main/internal/obs"
	"main/internal/venue"

	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type fakeGateway struct {
	mu             sync.Mutex
	subs           map[venue.Channel][]chan venue.Message
	subscribeErr   map[venue.Channel]error
	subscribeCount map[venue.Channel]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subs:           make(map[venue.Channel][]chan venue.Message),
		subscribeErr:   make(map[venue.Channel]error),
		subscribeCount: make(map[venue.Channel]int),
	}
}

func (f *fakeGateway) Connect(context.Context) error { return nil }
func (f *fakeGateway) Close()                        {}
func (f *fakeGateway) SessionDown() <-chan error     { return nil }

func (f *fakeGateway) SubmitOrder(context.Context, adapter.Order) (venue.SubmitAck, error) {
	return venue.SubmitAck{}, nil
}

func (f *fakeGateway) CancelOrder(context.Context, string, string) (venue.CancelAck, error) {
	return venue.CancelAck{}, nil
}

func (f *fakeGateway) QueryOpenOrders(context.Context) ([]venue.OrderSnapshot, error) {
	return nil, nil
}

func (f *fakeGateway) QueryInstruments(context.Context) ([]venue.Instrument, error) {
	return nil, nil
}

func (f *fakeGateway) Subscribe(_ context.Context, channel venue.Channel) (<-chan venue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCount[channel]++
	if err := f.subscribeErr[channel]; err != nil {
		return nil, err
	}
	ch := make(chan venue.Message, 8)
	f.subs[channel] = append(f.subs[channel], ch)
	return ch, nil
}

func (f *fakeGateway) push(channel venue.Channel, msg venue.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[channel]
	subs[len(subs)-1] <- msg
}

func (f *fakeGateway) dropStream(channel venue.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[channel]
	close(subs[len(subs)-1])
}

func (f *fakeGateway) count(channel venue.Channel) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCount[channel]
}

func fastBackoff() Backoff {
	return Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestSupervisorDeliversInOrder(t *testing.T) {
	gw := newFakeGateway()
	var mu sync.Mutex
	var got []venue.MessageKind
	sup := NewSupervisor(gw, func(m venue.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Kind)
	}, obs.NewMetrics(), Config{
		Backoff:  fastBackoff(),
		Channels: []venue.Channel{venue.ChannelOrders},
	})

	ctx, cancel := context.WithCancel(t.Context())
	sup.Run(ctx)

	waitFor(t, func() bool { return gw.count(venue.ChannelOrders) == 1 })
	gw.push(venue.ChannelOrders, venue.Message{Kind: venue.KindOrderUpdate})
	gw.push(venue.ChannelOrders, venue.Message{Kind: venue.KindCancelAck})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
	mu.Lock()
	assert.Equal(t, []venue.MessageKind{venue.KindOrderUpdate, venue.KindCancelAck}, got)
	mu.Unlock()

	cancel()
	assert.True(t, sup.Wait(time.Second))
}

func TestSupervisorResubscribesAfterDrop(t *testing.T) {
	gw := newFakeGateway()
	metrics := obs.NewMetrics()
	var delivered sync.WaitGroup
	delivered.Add(1)

	sup := NewSupervisor(gw, func(venue.Message) {
		delivered.Done()
	}, metrics, Config{
		Backoff:  fastBackoff(),
		Channels: []venue.Channel{venue.ChannelTrades},
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	sup.Run(ctx)

	waitFor(t, func() bool { return gw.count(venue.ChannelTrades) == 1 })
	gw.dropStream(venue.ChannelTrades)

	waitFor(t, func() bool { return gw.count(venue.ChannelTrades) == 2 })
	gw.push(venue.ChannelTrades, venue.Message{Kind: venue.KindTradeUpdate})
	delivered.Wait()

	assert.GreaterOrEqual(t, metrics.Snapshot().StreamRestarts, uint64(1))
}

func TestSupervisorFatalEscalation(t *testing.T) {
	gw := newFakeGateway()
	gw.subscribeErr[venue.ChannelOrders] = errors.Wrap(exception.ErrStreamFatal, "auth revoked")
	gw.subscribeErr[venue.ChannelTrades] = errors.Wrap(exception.ErrConnAuthFailed, "auth revoked")

	sup := NewSupervisor(gw, func(venue.Message) {}, obs.NewMetrics(), Config{
		Backoff:  fastBackoff(),
		Channels: []venue.Channel{venue.ChannelOrders, venue.ChannelTrades},
	})
	sup.Run(t.Context())

	select {
	case err := <-sup.Fatal():
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fatal never reported")
	}

	assert.True(t, sup.Wait(time.Second))
	// the second fatal is swallowed, not queued
	select {
	case err := <-sup.Fatal():
		t.Fatalf("unexpected second fatal: %v", err)
	default:
	}
}

func TestSupervisorUnsupportedChannelEnds(t *testing.T) {
	gw := newFakeGateway()
	gw.subscribeErr[venue.ChannelBalances] = errors.Wrap(exception.ErrStreamUnsupported, "no balance stream")

	sup := NewSupervisor(gw, func(venue.Message) {}, obs.NewMetrics(), Config{
		Backoff:  fastBackoff(),
		Channels: []venue.Channel{venue.ChannelBalances},
	})
	sup.Run(t.Context())

	assert.True(t, sup.Wait(time.Second))
	select {
	case err := <-sup.Fatal():
		t.Fatalf("unsupported channel must not be fatal: %v", err)
	default:
	}
}
