package translator

import (
	"sync"
	"time"

	"main/internal/venue"
)

// pendingFills parks fills that raced ahead of their acceptance. Entries are
// applied once the acceptance lands or dropped after the TTL.
type pendingFills struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string][]pendingFill
}

type pendingFill struct {
	trade     venue.TradeUpdate
	expiresAt time.Time
}

func newPendingFills(ttl time.Duration) *pendingFills {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &pendingFills{
		ttl: ttl,
		m:   make(map[string][]pendingFill),
	}
}

// Park stores a fill for later application.
func (p *pendingFills) Park(trade venue.TradeUpdate, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[trade.ClientOrderID] = append(p.m[trade.ClientOrderID], pendingFill{
		trade:     trade,
		expiresAt: now.Add(p.ttl),
	})
}

// Take removes and returns all parked fills for the id.
func (p *pendingFills) Take(clientOrderID string) []venue.TradeUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	parked, ok := p.m[clientOrderID]
	if !ok {
		return nil
	}
	delete(p.m, clientOrderID)
	out := make([]venue.TradeUpdate, 0, len(parked))
	for _, f := range parked {
		out = append(out, f.trade)
	}
	return out
}

// Drop discards parked fills for the id, normally on a terminal transition.
func (p *pendingFills) Drop(clientOrderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, clientOrderID)
}

// Expire removes fills past their deadline and returns how many were
// dropped per client order id.
func (p *pendingFills) Expire(now time.Time) map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	expired := make(map[string]int)
	for id, parked := range p.m {
		kept := parked[:0]
		for _, f := range parked {
			if now.After(f.expiresAt) {
				expired[id]++
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) == 0 {
			delete(p.m, id)
			continue
		}
		p.m[id] = kept
	}
	return expired
}

// Len returns the number of ids with parked fills.
func (p *pendingFills) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
