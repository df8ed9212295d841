package notifications

import (
	"sync"

	"cortado/internal/metrics"

	"github.com/rs/zerolog/log"
)

// DefaultQueueCapacity bounds the per-user offline queue. Insertion past
// capacity evicts the oldest entry.
const DefaultQueueCapacity = 100

// Handle is a live connection capable of receiving a notification.
// A failed send does not remove the handle; connection lifecycle is
// owned by whoever registered it.
type Handle interface {
	Send(n Notification) error
}

// Hub tracks live per-user connections and routes notifications to them,
// queueing per user while no connection is registered. Each user's state
// is guarded by its own lock; the hub-level lock covers only map access,
// so unrelated users never serialize on one another.
type Hub struct {
	mu       sync.RWMutex
	users    map[string]*userEntry
	queueCap int
}

type userEntry struct {
	mu    sync.Mutex
	conns map[Handle]struct{}
	queue []Notification
}

// NewHub creates a Hub with the given queue capacity per user.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewHub(queueCap int) *Hub {
	if queueCap <= 0 {
		queueCap = DefaultQueueCapacity
	}
	return &Hub{
		users:    make(map[string]*userEntry),
		queueCap: queueCap,
	}
}

// entryFor returns the user's entry, creating it if needed.
func (h *Hub) entryFor(userID string) *userEntry {
	h.mu.RLock()
	entry, ok := h.users[userID]
	h.mu.RUnlock()
	if ok {
		return entry
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok = h.users[userID]; ok {
		return entry
	}
	entry = &userEntry{conns: make(map[Handle]struct{})}
	h.users[userID] = entry
	return entry
}

// RegisterConnection adds a live connection for the user and flushes any
// queued notifications to it in FIFO order. The flush happens under the
// user's lock so a concurrent Deliver cannot reorder around it.
func (h *Hub) RegisterConnection(userID string, handle Handle) {
	entry := h.entryFor(userID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.conns[handle] = struct{}{}
	metrics.LiveConnections.Inc()

	if len(entry.queue) == 0 {
		return
	}

	flushed := 0
	for _, n := range entry.queue {
		if err := handle.Send(n); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("hub: failed to flush queued notification")
			continue
		}
		flushed++
	}
	log.Debug().Str("user", userID).Int("flushed", flushed).Msg("hub: queue flushed on connect")
	entry.queue = nil
}

// DeregisterConnection removes a connection. Queueing resumes
// automatically once the user's connection set is empty.
func (h *Hub) DeregisterConnection(userID string, handle Handle) {
	h.mu.RLock()
	entry, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	if _, present := entry.conns[handle]; present {
		delete(entry.conns, handle)
		metrics.LiveConnections.Dec()
	}
	idle := len(entry.conns) == 0 && len(entry.queue) == 0
	entry.mu.Unlock()

	if idle {
		h.dropIfIdle(userID)
	}
}

// dropIfIdle removes the user's entry when it holds no state.
// Re-checked under both locks since a Deliver may have raced in.
func (h *Hub) dropIfIdle(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.users[userID]
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if len(entry.conns) == 0 && len(entry.queue) == 0 {
		delete(h.users, userID)
	}
}

// Deliver routes a notification to the user: pushed to every live
// connection, or queued when none is registered. Per-recipient FIFO
// ordering follows the order Deliver is called.
func (h *Hub) Deliver(userID string, n Notification) {
	entry := h.entryFor(userID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if len(entry.conns) > 0 {
		for handle := range entry.conns {
			if err := handle.Send(n); err != nil {
				log.Warn().Err(err).Str("user", userID).Str("notification", n.ID).Msg("hub: live delivery failed")
			}
		}
		metrics.NotificationsDeliveredRealtime.Inc()
		return
	}

	if len(entry.queue) >= h.queueCap {
		entry.queue = entry.queue[1:]
		metrics.NotificationsEvictedTotal.Inc()
	}
	entry.queue = append(entry.queue, n)
	metrics.NotificationsQueuedTotal.Inc()
}

// ClearQueued drops all queued entries for a user.
func (h *Hub) ClearQueued(userID string) int {
	h.mu.RLock()
	entry, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	entry.mu.Lock()
	dropped := len(entry.queue)
	entry.queue = nil
	idle := len(entry.conns) == 0
	entry.mu.Unlock()

	if idle {
		h.dropIfIdle(userID)
	}
	return dropped
}

// QueuedCount returns the number of notifications waiting for a user.
func (h *Hub) QueuedCount(userID string) int {
	h.mu.RLock()
	entry, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.queue)
}
