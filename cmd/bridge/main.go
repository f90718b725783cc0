package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/bridge"
	"main/internal/events"
	"main/internal/journal"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/registry"
	"main/internal/translator"
	"main/internal/venue"
	"main/internal/venue/btcc"

	"main/pkg/conn"
	"main/pkg/exception"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	metricsInterval := flag.Duration("metrics-interval", time.Minute, "Metrics log interval (0=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Profiling.AppName,
			ServerAddress:   loaded.Profiling.ServerAddress,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(ctx, loaded, *metricsInterval); err != nil {
		log.Fatalf("bridge failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded, metricsInterval time.Duration) error {
	metrics := obs.NewMetrics()
	reg := registry.New()
	queue := events.NewQueue(loaded.QueueCapacity)
	tr := translator.New(reg, queue, metrics, loaded.Translator)
	gw := btcc.New(loaded.Venue, nil)

	if !loaded.Features.EnableBalances {
		loaded.Bridge.Streams.Channels = []venue.Channel{
			venue.ChannelOrders,
			venue.ChannelTrades,
		}
	}
	br := bridge.New(gw, reg, tr, metrics, loaded.Bridge)

	var sink events.Sink = events.SinkFunc(logEvent)
	if loaded.Features.EnableJournal {
		client, err := conn.New(loaded.Journal)
		if err != nil {
			return err
		}
		defer client.Close()

		j, err := journal.New(client, sink)
		if err != nil {
			return err
		}
		sink = j
	}

	go queue.Run(ctx, sink.Emit)
	defer queue.Close()

	if err := br.Connect(ctx); err != nil {
		return err
	}

	if metricsInterval > 0 {
		go reportMetrics(ctx, metrics, queue, metricsInterval)
	}

	select {
	case <-ctx.Done():
		logs.Info("shutdown signal received")
	case err := <-br.Fatal():
		logs.Errorf("bridge supervision ended: %v", err)
		return err
	}

	if err := br.Disconnect(); err != nil && !errors.Is(err, exception.ErrConnNotConnected) {
		return err
	}
	return nil
}

func logEvent(e events.Event) {
	switch e.Type {
	case events.TypeAccountStateChanged:
		logs.Infof("event %s: %d balance(s)", e.Type, len(e.Account.Balances))
	case events.TypeOrderPartiallyFilled, events.TypeOrderFilled:
		logs.Infof("event %s: client=%s order=%s fill=%s@%s leaves=%s",
			e.Type, e.ClientOrderID, e.OrderID, e.FillQty, e.FillPrice, e.LeavesQty)
	default:
		logs.Infof("event %s: client=%s order=%s reason=%q",
			e.Type, e.ClientOrderID, e.OrderID, e.Reason)
	}
}

func reportMetrics(ctx context.Context, metrics *obs.Metrics, queue *events.Queue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("metrics: events=%v duplicates=%d semantic_drops=%d buffered=%d expired=%d restarts=%d reconnects=%d queue_drops=%d translate=%v request=%v",
				snap.EventCounts, snap.DuplicateDrops, snap.SemanticDrops,
				snap.BufferedFills, snap.ExpiredFills, snap.StreamRestarts,
				snap.Reconnects, queue.Drops(), snap.TranslateLatency, snap.RequestLatency)
		}
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...any)  {}
func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Errorf(string, ...any) {}
