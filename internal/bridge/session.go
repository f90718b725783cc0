package bridge

import (
	"context"
	"sync"
	"time"

	"main/internal/adapter"
	"main/internal/streams"
	"main/internal/venue"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// supervise runs sessions until the context ends or an unrecoverable error
// appears. A lost session is rebuilt with backoff; reconciliation runs
// before the new session's streams start consuming.
func (b *Bridge) supervise(ctx context.Context) {
	defer b.wg.Done()

	for {
		reason := b.runSession(ctx)
		if reason == nil {
			// context ended, Disconnect owns the teardown
			return
		}
		if isFatal(reason) {
			b.gw.Close()
			b.state.Store(int32(StateDisconnected))
			b.reportFatal(reason)
			logs.Errorf("bridge: unrecoverable venue error: %v", reason)
			return
		}

		logs.Warnf("bridge: venue session lost: %v", reason)
		b.state.Store(int32(StateReconnecting))
		b.gw.Close()

		if err := b.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.state.Store(int32(StateDisconnected))
			b.reportFatal(err)
			logs.Errorf("bridge: reconnect abandoned: %v", err)
			return
		}
		b.metrics.IncReconnect()
		b.state.Store(int32(StateConnected))
	}
}

// runSession drives one connected session to its end. It returns nil when
// the context ended, otherwise the reason the session died.
func (b *Bridge) runSession(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sup := streams.NewSupervisor(b.gw, b.tr.HandleMessage, b.metrics, b.cfg.Streams)
	sup.Run(sessionCtx)

	var aux sync.WaitGroup
	aux.Add(2)
	go func() {
		defer aux.Done()
		b.refreshMetadata(sessionCtx)
	}()
	go func() {
		defer aux.Done()
		b.sweepPendingFills(sessionCtx)
	}()

	var reason error
	select {
	case <-ctx.Done():
	case err := <-sup.Fatal():
		reason = err
	case err, ok := <-b.gw.SessionDown():
		if !ok || err == nil {
			err = exception.ErrConnNotConnected
		}
		reason = errors.Wrap(err, "session down")
	}

	cancel()
	if !sup.Wait(b.cfg.ShutdownTimeout) {
		logs.Warnf("bridge: stream tasks still running at shutdown deadline")
	}
	aux.Wait()
	return reason
}

// reconnect re-establishes the venue session with backoff and reconciles
// before returning. Only a fatal error or context end stops the attempts.
func (b *Bridge) reconnect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if err := sleepBackoff(ctx, b.cfg.Reconnect, attempt); err != nil {
			return err
		}
		if err := b.gw.Connect(ctx); err != nil {
			if isFatal(err) {
				return errors.Wrap(err, "reconnect")
			}
			logs.Warnf("bridge: reconnect attempt %d failed: %v", attempt, err)
			continue
		}
		if err := b.reconcile(ctx); err != nil {
			logs.Warnf("bridge: reconciliation failed, retrying: %v", err)
			b.gw.Close()
			continue
		}
		logs.Infof("bridge: reconnected after %d attempt(s)", attempt)
		return nil
	}
}

// reconcile releases markers orphaned by the dropped connection and replays
// the venue's order snapshot, so transitions missed while disconnected are
// translated before any stream resumes.
func (b *Bridge) reconcile(ctx context.Context) error {
	b.reg.ReleaseAllMarkers()

	rctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	snapshots, err := b.gw.QueryOpenOrders(rctx)
	if err != nil {
		return errors.Wrap(err, "query open orders")
	}

	byClientID := make(map[string]venue.OrderSnapshot, len(snapshots))
	byOrderID := make(map[string]venue.OrderSnapshot, len(snapshots))
	for _, snap := range snapshots {
		if snap.ClientOrderID != "" {
			byClientID[snap.ClientOrderID] = snap
		}
		if snap.OrderID != "" {
			byOrderID[snap.OrderID] = snap
		}
	}

	for _, ord := range b.reg.Orders() {
		snap, ok := byClientID[ord.ClientOrderID]
		if !ok && ord.OrderID != "" {
			snap, ok = byOrderID[ord.OrderID]
		}
		if !ok {
			logs.Warnf("bridge: no venue record for %s, left for the ack streams", ord.ClientOrderID)
			continue
		}
		b.replaySnapshot(ord, snap)
	}
	return nil
}

// replaySnapshot feeds one reconciliation entry through the translator as if
// it had arrived on the order stream. Fills that landed before a cancel are
// applied first so the terminal event carries the right remaining quantity.
func (b *Bridge) replaySnapshot(ord adapter.Order, snap venue.OrderSnapshot) {
	if ord.OrderID == "" && snap.OrderID != "" {
		switch snap.Status {
		case venue.OrderStatusAccepted, venue.OrderStatusPartiallyFilled,
			venue.OrderStatusFilled, venue.OrderStatusCanceled:
			b.tr.OnAccepted(ord.ClientOrderID, snap.OrderID, snap.TsNano)
		}
	}

	if snap.Status == venue.OrderStatusCanceled && snap.FilledQty.GreaterThan(ord.FilledQty) {
		b.tr.HandleMessage(venue.Message{
			Kind: venue.KindOrderUpdate,
			Order: &venue.OrderUpdate{
				ClientOrderID: ord.ClientOrderID,
				OrderID:       snap.OrderID,
				Status:        venue.OrderStatusPartiallyFilled,
				Price:         snap.AvgFillPrice,
				Quantity:      snap.Quantity,
				FilledQty:     snap.FilledQty,
				TsNano:        snap.TsNano,
			},
		})
	}

	b.tr.HandleMessage(venue.Message{
		Kind: venue.KindOrderUpdate,
		Order: &venue.OrderUpdate{
			ClientOrderID: ord.ClientOrderID,
			OrderID:       snap.OrderID,
			Status:        snap.Status,
			Reason:        snap.Reason,
			Price:         snap.AvgFillPrice,
			Quantity:      snap.Quantity,
			FilledQty:     snap.FilledQty,
			TsNano:        snap.TsNano,
		},
	})
}

// refreshMetadata keeps instrument trading rules current. Failures are
// logged and retried next interval; they never disturb the order path.
func (b *Bridge) refreshMetadata(ctx context.Context) {
	b.fetchInstruments(ctx)

	ticker := time.NewTicker(b.cfg.MetadataInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.fetchInstruments(ctx)
		}
	}
}

func (b *Bridge) fetchInstruments(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	instruments, err := b.gw.QueryInstruments(rctx)
	if err != nil {
		if ctx.Err() == nil {
			logs.Warnf("bridge: instrument refresh failed: %v", err)
		}
		return
	}
	b.instruments.Store(&instruments)
}

// sweepPendingFills expires fills buffered ahead of an acceptance that
// never arrived.
func (b *Bridge) sweepPendingFills(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.FillSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.tr.ExpirePendingFills(now)
		}
	}
}
