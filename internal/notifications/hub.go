package notifications

import "sync"

// Hub maps order ids to the sessions that subscribed to them. One mutex
// guards the whole table; nothing slow runs under it — Notify only hands
// frames to per-session outbound queues.
//
// The hub does not own sessions. A session that died since it subscribed is
// detected by its refusing the frame and is swept from the set in place, so
// abrupt disconnects never leak subscription entries.
type Hub struct {
	mu            sync.Mutex
	subscriptions map[string]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{subscriptions: make(map[string]map[*Session]struct{})}
}

// Subscribe registers a session for one order id.
func (h *Hub) Subscribe(orderID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscriptions[orderID]
	if !ok {
		set = make(map[*Session]struct{})
		h.subscriptions[orderID] = set
	}
	set[s] = struct{}{}
}

// Unsubscribe removes a session; the order key is erased with its last entry.
func (h *Hub) Unsubscribe(orderID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscriptions[orderID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subscriptions, orderID)
	}
}

// Notify queues the payload on every live subscriber of the order and
// returns how many accepted it. Dead sessions are removed while iterating.
func (h *Hub) Notify(orderID string, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscriptions[orderID]
	if !ok {
		return 0
	}

	delivered := 0
	for s := range set {
		if s.TrySend(payload) {
			delivered++
		} else {
			delete(set, s)
		}
	}
	if len(set) == 0 {
		delete(h.subscriptions, orderID)
	}
	return delivered
}

// Subscribers reports the current subscriber count for an order.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscriptions[orderID])
}
