package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/adapter"
	"main/internal/obs"
	"main/internal/registry"
	"main/internal/streams"
	"main/internal/translator"
	"main/internal/venue"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Config tunes the connection lifecycle.
type Config struct {
	// RequestTimeout bounds each synchronous venue request.
	RequestTimeout time.Duration
	// ShutdownTimeout bounds the cooperative join on disconnect.
	ShutdownTimeout time.Duration
	// Reconnect paces full-session recovery attempts.
	Reconnect streams.Backoff
	// Streams configures the per-channel stream supervisor.
	Streams streams.Config
	// ClientOrderPrefix prefixes generated client order ids.
	ClientOrderPrefix string
	// MetadataInterval paces instrument metadata refreshes.
	MetadataInterval time.Duration
	// FillSweepInterval paces expiry of fills buffered before acceptance.
	FillSweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.Reconnect.IsZero() {
		c.Reconnect = streams.DefaultBackoff()
	}
	if c.ClientOrderPrefix == "" {
		c.ClientOrderPrefix = "bridge"
	}
	if c.MetadataInterval <= 0 {
		c.MetadataInterval = time.Minute
	}
	if c.FillSweepInterval <= 0 {
		c.FillSweepInterval = time.Second
	}
	return c
}

// Bridge owns the venue connection lifecycle: it establishes the session,
// supervises the stream tasks, reconnects with backoff after transient
// drops, and reconciles registry state against the venue before streams
// resume. Submit and cancel requests flow through it so every order enters
// the registry before it reaches the wire.
type Bridge struct {
	cfg     Config
	gw      venue.Gateway
	reg     *registry.Registry
	tr      *translator.Translator
	metrics *obs.Metrics

	state atomic.Int32
	seq   atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	instruments atomic.Pointer[[]venue.Instrument]
	fatalC      chan error
}

func New(gw venue.Gateway, reg *registry.Registry, tr *translator.Translator, metrics *obs.Metrics, cfg Config) *Bridge {
	return &Bridge{
		cfg:     cfg.withDefaults(),
		gw:      gw,
		reg:     reg,
		tr:      tr,
		metrics: metrics,
		fatalC:  make(chan error, 1),
	}
}

// Status returns the current lifecycle state.
func (b *Bridge) Status() State {
	return State(b.state.Load())
}

// Fatal delivers unrecoverable errors that ended supervision, such as a
// failed authentication during reconnect.
func (b *Bridge) Fatal() <-chan error {
	return b.fatalC
}

// Connect establishes the venue session and starts supervision. The request
// counter restarts at zero; it is never reset while the session lives, not
// even across automatic reconnects.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return errors.Wrap(exception.ErrConnAlreadyConnected, "connect")
	}
	if err := b.gw.Connect(ctx); err != nil {
		b.state.Store(int32(StateDisconnected))
		return errors.Wrap(err, "connect venue")
	}

	if b.cancel != nil {
		b.cancel()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.seq.Store(0)
	b.state.Store(int32(StateConnected))

	b.wg.Add(1)
	go b.supervise(runCtx)

	logs.Info("bridge: connected")
	return nil
}

// Disconnect cancels supervision, joins the stream tasks with a bounded
// timeout and closes the venue session. Processing markers held by tasks
// that missed the deadline stay set; the next connect releases them during
// reconciliation.
func (b *Bridge) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch State(b.state.Load()) {
	case StateConnected, StateReconnecting:
	default:
		return errors.Wrap(exception.ErrConnNotConnected, "disconnect")
	}
	b.state.Store(int32(StateDisconnecting))
	b.cancel()
	if !waitBounded(&b.wg, b.cfg.ShutdownTimeout) {
		logs.Warnf("bridge: shutdown join timed out after %s", b.cfg.ShutdownTimeout)
	}
	b.gw.Close()
	b.state.Store(int32(StateDisconnected))

	logs.Info("bridge: disconnected")
	return nil
}

// Order returns the tracked order for the client order id.
func (b *Bridge) Order(clientOrderID string) (adapter.Order, bool) {
	return b.reg.Lookup(clientOrderID)
}

// Orders lists every tracked order.
func (b *Bridge) Orders() []adapter.Order {
	return b.reg.Orders()
}

// Account returns the most recent account snapshot.
func (b *Bridge) Account() (adapter.AccountState, bool) {
	return b.tr.Account()
}

// Instruments returns the most recently refreshed instrument metadata.
func (b *Bridge) Instruments() []venue.Instrument {
	p := b.instruments.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Instrument looks up trading-rule metadata for one symbol.
func (b *Bridge) Instrument(symbol adapter.Symbol) (venue.Instrument, bool) {
	for _, inst := range b.Instruments() {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return venue.Instrument{}, false
}

func (b *Bridge) reportFatal(err error) {
	select {
	case b.fatalC <- err:
	default:
	}
}

func waitBounded(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func sleepBackoff(ctx context.Context, backoff streams.Backoff, attempt int) error {
	timer := time.NewTimer(backoff.Next(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
