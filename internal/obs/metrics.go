package obs

import (
	"sync/atomic"
	"time"

	"main/internal/events"
)

const maxEventType = int(events.TypeAccountStateChanged)

// Metrics collects lightweight counters and latency stats for the bridge.
type Metrics struct {
	eventCounts    [maxEventType + 1]uint64
	duplicateDrops uint64
	semanticDrops  uint64
	bufferedFills  uint64
	expiredFills   uint64
	streamRestarts uint64
	reconnects     uint64

	translateLatency LatencyStats
	requestLatency   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[events.Type]uint64
	DuplicateDrops   uint64
	SemanticDrops    uint64
	BufferedFills    uint64
	ExpiredFills     uint64
	StreamRestarts   uint64
	Reconnects       uint64
	TranslateLatency LatencySnapshot
	RequestLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncEvent counts one emitted domain event.
func (m *Metrics) IncEvent(t events.Type) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncDuplicateDrop counts a notification discarded by the admission gate.
func (m *Metrics) IncDuplicateDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.duplicateDrops, 1)
}

// IncSemanticDrop counts a notification for an unknown order or an invalid
// transition.
func (m *Metrics) IncSemanticDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.semanticDrops, 1)
}

// IncBufferedFill counts a fill parked until its acceptance arrives.
func (m *Metrics) IncBufferedFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bufferedFills, 1)
}

// IncExpiredFill counts a buffered fill dropped after its TTL.
func (m *Metrics) IncExpiredFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.expiredFills, 1)
}

// IncStreamRestart counts one per-stream resubscribe.
func (m *Metrics) IncStreamRestart() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.streamRestarts, 1)
}

// IncReconnect counts one full connection recovery.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// ObserveTranslate measures one translator transition.
func (m *Metrics) ObserveTranslate(d time.Duration) {
	if m == nil {
		return
	}
	m.translateLatency.Observe(d)
}

// ObserveRequest measures one venue request round trip.
func (m *Metrics) ObserveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.requestLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[events.Type]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[events.Type(i)] = v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		DuplicateDrops:   atomic.LoadUint64(&m.duplicateDrops),
		SemanticDrops:    atomic.LoadUint64(&m.semanticDrops),
		BufferedFills:    atomic.LoadUint64(&m.bufferedFills),
		ExpiredFills:     atomic.LoadUint64(&m.expiredFills),
		StreamRestarts:   atomic.LoadUint64(&m.streamRestarts),
		Reconnects:       atomic.LoadUint64(&m.reconnects),
		TranslateLatency: m.translateLatency.Snapshot(),
		RequestLatency:   m.requestLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
