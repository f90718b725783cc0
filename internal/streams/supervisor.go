package streams

import (
	"context"
	"errors"
	"sync"
	"time"

	"main/internal/obs"
	"main/internal/venue"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

// Handler consumes one translated venue message.
type Handler func(venue.Message)

// Supervisor owns one long-lived task per subscription channel. Each task
// consumes its stream sequentially and resubscribes with backoff after a
// transient drop. A fatal error is reported once and stops every task via
// the caller tearing down the shared context.
type Supervisor struct {
	gw       venue.Gateway
	handler  Handler
	metrics  *obs.Metrics
	backoff  Backoff
	channels []venue.Channel

	fatalOnce sync.Once
	fatalC    chan error
	wg        sync.WaitGroup
}

// Config tunes the supervisor.
type Config struct {
	Backoff Backoff
	// Channels defaults to every venue channel.
	Channels []venue.Channel
}

func NewSupervisor(gw venue.Gateway, handler Handler, metrics *obs.Metrics, cfg Config) *Supervisor {
	backoff := cfg.Backoff
	if backoff.IsZero() {
		backoff = DefaultBackoff()
	}
	channels := cfg.Channels
	if len(channels) == 0 {
		channels = venue.Channels()
	}
	return &Supervisor{
		gw:       gw,
		handler:  handler,
		metrics:  metrics,
		backoff:  backoff,
		channels: channels,
		fatalC:   make(chan error, 1),
	}
}

// Run starts one task per channel. It does not block; use Wait for the
// bounded shutdown join.
func (s *Supervisor) Run(ctx context.Context) {
	for _, channel := range s.channels {
		s.wg.Add(1)
		go s.runTask(ctx, channel)
	}
}

// Fatal delivers the first unrecoverable stream error.
func (s *Supervisor) Fatal() <-chan error {
	return s.fatalC
}

// Wait joins all tasks with a bounded timeout. Returns false when tasks were
// still running at the deadline.
func (s *Supervisor) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Supervisor) runTask(ctx context.Context, channel venue.Channel) {
	defer s.wg.Done()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := s.gw.Subscribe(ctx, channel)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, exception.ErrStreamUnsupported) {
				logs.Warnf("stream %s: not supported by venue, task ends", channel)
				return
			}
			if isFatal(err) {
				s.reportFatal(channel, err)
				return
			}
			attempt++
			s.metrics.IncStreamRestart()
			logs.Warnf("stream %s: subscribe failed (attempt %d): %v", channel, attempt, err)
			s.sleepBackoff(ctx, attempt)
			continue
		}
		attempt = 0
		logs.Infof("stream %s: subscribed", channel)

		if !s.consume(ctx, msgs) {
			return
		}
		// stream dropped, resubscribe
		attempt++
		s.metrics.IncStreamRestart()
		logs.Warnf("stream %s: dropped, resubscribing", channel)
		s.sleepBackoff(ctx, attempt)
	}
}

// consume processes messages in delivery order until the stream closes.
// Returns false when the context ended.
func (s *Supervisor) consume(ctx context.Context, msgs <-chan venue.Message) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-msgs:
			if !ok {
				return true
			}
			s.handler(msg)
		}
	}
}

func (s *Supervisor) reportFatal(channel venue.Channel, err error) {
	s.fatalOnce.Do(func() {
		logs.Errorf("stream %s: fatal: %v", channel, err)
		s.fatalC <- err
	})
}

func (s *Supervisor) sleepBackoff(ctx context.Context, attempt int) {
	wait := s.backoff.Next(attempt)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func isFatal(err error) bool {
	return errors.Is(err, exception.ErrStreamFatal) || errors.Is(err, exception.ErrConnAuthFailed)
}
