package registry

import (
	"sync"

	"main/internal/adapter"
	"main/pkg/exception"
)

type entry struct {
	order      *adapter.Order
	processing bool
}

// Registry maps client order ids to order aggregates and their in-flight
// processing markers. All methods are safe under concurrent use from
// multiple stream tasks.
type Registry struct {
	mu     sync.RWMutex
	orders map[string]*entry
}

func New() *Registry {
	return &Registry{orders: make(map[string]*entry)}
}

// Register adds a new order keyed by its client order id.
func (r *Registry) Register(order *adapter.Order) error {
	if order == nil || order.ClientOrderID == "" {
		return exception.ErrOrderInvalidRequest
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ClientOrderID]; ok {
		return exception.ErrOrderDuplicateClientID
	}
	r.orders[order.ClientOrderID] = &entry{order: order}
	return nil
}

// Lookup returns a copy of the order. Mutation goes through Mutate while the
// processing marker is held.
func (r *Registry) Lookup(clientOrderID string) (adapter.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.orders[clientOrderID]
	if !ok {
		return adapter.Order{}, false
	}
	return *e.order, true
}

// LookupByOrderID scans for the order carrying the venue-assigned id. Used
// for streams that omit the client order id.
func (r *Registry) LookupByOrderID(orderID string) (adapter.Order, bool) {
	if orderID == "" {
		return adapter.Order{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.orders {
		if e.order.OrderID == orderID {
			return *e.order, true
		}
	}
	return adapter.Order{}, false
}

// TryBeginProcessing atomically sets the processing marker. It is the sole
// admission gate for emitting a lifecycle-changing event: a caller that gets
// false must discard its notification without touching the order.
func (r *Registry) TryBeginProcessing(clientOrderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.orders[clientOrderID]
	if !ok || e.processing {
		return false
	}
	e.processing = true
	return true
}

// EndProcessing releases the processing marker. Safe to call for ids that
// were removed while the marker was held.
func (r *Registry) EndProcessing(clientOrderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.orders[clientOrderID]; ok {
		e.processing = false
	}
}

// Mutate applies fn to the order under the registry lock. The caller must
// hold the processing marker for the id.
func (r *Registry) Mutate(clientOrderID string, fn func(*adapter.Order)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.orders[clientOrderID]
	if !ok {
		return false
	}
	fn(e.order)
	return true
}

// Remove drops an order, normally after a terminal transition.
func (r *Registry) Remove(clientOrderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, clientOrderID)
}

// Len returns the number of tracked orders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Orders returns copies of all tracked orders, for reconciliation sweeps.
func (r *Registry) Orders() []adapter.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapter.Order, 0, len(r.orders))
	for _, e := range r.orders {
		out = append(out, *e.order)
	}
	return out
}

// ReleaseAllMarkers clears every processing marker. Used once on reconnect:
// markers left set by a dropped connection must not block reconciliation.
func (r *Registry) ReleaseAllMarkers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.orders {
		e.processing = false
	}
}
