package notifications

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandle captures sent notifications.
type recordingHandle struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (h *recordingHandle) Send(n Notification) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, n)
	return nil
}

func (h *recordingHandle) ids() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sent))
	for i, n := range h.sent {
		out[i] = n.ID
	}
	return out
}

func note(id string) Notification {
	return Notification{ID: id, RecipientID: "alice", Type: TypeComment}
}

func TestHub_DeliverToLiveConnection(t *testing.T) {
	hub := NewHub(10)
	conn := &recordingHandle{}
	hub.RegisterConnection("alice", conn)

	hub.Deliver("alice", note("n1"))
	hub.Deliver("alice", note("n2"))

	assert.Equal(t, []string{"n1", "n2"}, conn.ids())
	assert.Equal(t, 0, hub.QueuedCount("alice"))
}

func TestHub_DeliverToAllConnections(t *testing.T) {
	hub := NewHub(10)
	first := &recordingHandle{}
	second := &recordingHandle{}
	hub.RegisterConnection("alice", first)
	hub.RegisterConnection("alice", second)

	hub.Deliver("alice", note("n1"))

	assert.Equal(t, []string{"n1"}, first.ids())
	assert.Equal(t, []string{"n1"}, second.ids())
}

func TestHub_QueueWhileOffline(t *testing.T) {
	hub := NewHub(10)

	hub.Deliver("alice", note("n1"))
	hub.Deliver("alice", note("n2"))
	hub.Deliver("alice", note("n3"))
	assert.Equal(t, 3, hub.QueuedCount("alice"))

	// Connecting flushes the queue in arrival order.
	conn := &recordingHandle{}
	hub.RegisterConnection("alice", conn)
	assert.Equal(t, []string{"n1", "n2", "n3"}, conn.ids())
	assert.Equal(t, 0, hub.QueuedCount("alice"))

	// Later deliveries go straight to the connection.
	hub.Deliver("alice", note("n4"))
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, conn.ids())
}

func TestHub_QueueEvictsOldestAtCapacity(t *testing.T) {
	hub := NewHub(100)

	for i := 1; i <= 101; i++ {
		hub.Deliver("alice", note(fmt.Sprintf("n%d", i)))
	}
	assert.Equal(t, 100, hub.QueuedCount("alice"))

	conn := &recordingHandle{}
	hub.RegisterConnection("alice", conn)

	got := conn.ids()
	require.Len(t, got, 100)
	assert.Equal(t, "n2", got[0], "oldest entry should have been evicted")
	assert.Equal(t, "n101", got[99])
}

func TestHub_QueueingResumesAfterDisconnect(t *testing.T) {
	hub := NewHub(10)
	conn := &recordingHandle{}
	hub.RegisterConnection("alice", conn)
	hub.Deliver("alice", note("n1"))

	hub.DeregisterConnection("alice", conn)
	hub.Deliver("alice", note("n2"))

	assert.Equal(t, []string{"n1"}, conn.ids())
	assert.Equal(t, 1, hub.QueuedCount("alice"))
}

func TestHub_FailedFlushDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(10)
	hub.Deliver("alice", note("n1"))
	hub.Deliver("alice", note("n2"))

	// A handle that fails every send still drains the queue.
	broken := &recordingHandle{err: errors.New("gone")}
	hub.RegisterConnection("alice", broken)
	assert.Equal(t, 0, hub.QueuedCount("alice"))
	assert.Empty(t, broken.ids())
}

func TestHub_ClearQueued(t *testing.T) {
	hub := NewHub(10)
	hub.Deliver("alice", note("n1"))
	hub.Deliver("alice", note("n2"))

	assert.Equal(t, 2, hub.ClearQueued("alice"))
	assert.Equal(t, 0, hub.QueuedCount("alice"))
	assert.Equal(t, 0, hub.ClearQueued("alice"))
	assert.Equal(t, 0, hub.ClearQueued("nobody"))
}

func TestHub_UsersAreIndependent(t *testing.T) {
	hub := NewHub(10)
	conn := &recordingHandle{}
	hub.RegisterConnection("alice", conn)

	hub.Deliver("bob", Notification{ID: "b1", RecipientID: "bob", Type: TypeLike})

	assert.Empty(t, conn.ids())
	assert.Equal(t, 1, hub.QueuedCount("bob"))
	assert.Equal(t, 0, hub.QueuedCount("alice"))
}

func TestHub_ConcurrentDeliveryKeepsAllNotifications(t *testing.T) {
	hub := NewHub(DefaultQueueCapacity)
	conn := &recordingHandle{}
	hub.RegisterConnection("alice", conn)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				hub.Deliver("alice", note(fmt.Sprintf("w%d-n%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, conn.ids(), workers*perWorker)
}

func TestHub_ConcurrentUsersDoNotRace(t *testing.T) {
	hub := NewHub(10)

	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", u)
			conn := &recordingHandle{}
			for i := 0; i < 20; i++ {
				hub.Deliver(user, Notification{ID: fmt.Sprintf("n%d", i), RecipientID: user, Type: TypeLike})
				if i == 10 {
					hub.RegisterConnection(user, conn)
				}
			}
			hub.DeregisterConnection(user, conn)
		}(u)
	}
	wg.Wait()
}
