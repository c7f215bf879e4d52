package sse

import (
	"sync"

	"mcpd/pkg/logging"
)

// DefaultMaxQueueSize and DefaultMaxHistory are spec.md §3's defaults: a
// 100-deep per-client queue and a 1000-entry replay ring.
const (
	DefaultMaxQueueSize = 100
	DefaultMaxHistory   = 1000
)

type client struct {
	username string
	queue    chan map[string]any
}

// Manager is a thread-safe SSE client registry with broadcast, unicast, and
// bounded-history replay, grounded on
// original_source/ai_mcp_daemon_engine/handlers/sse_manager.py's SSEManager,
// translated to a single sync.RWMutex-guarded registry since spec.md §9
// requires real mutual exclusion on a parallel-threads runtime rather than
// the single-threaded-async-runtime lock the Python original relies on.
type Manager struct {
	mu sync.RWMutex

	clients     map[int64]*client
	userClients map[string]map[int64]bool
	history     []map[string]any

	nextClientID  int64
	nextMessageID int64

	maxQueueSize int
	maxHistory   int
}

// New constructs a Manager with spec.md's default queue and history sizes.
func New() *Manager {
	return NewWithLimits(DefaultMaxQueueSize, DefaultMaxHistory)
}

// NewWithLimits constructs a Manager with explicit per-client queue capacity
// and replay history size, mainly for tests.
func NewWithLimits(maxQueueSize, maxHistory int) *Manager {
	return &Manager{
		clients:      make(map[int64]*client),
		userClients:  make(map[string]map[int64]bool),
		maxQueueSize: maxQueueSize,
		maxHistory:   maxHistory,
	}
}

// AddClient registers a new SSE connection for username and returns its
// client_id and receive-only queue.
func (m *Manager) AddClient(username string) (int64, <-chan map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextClientID++
	id := m.nextClientID
	q := make(chan map[string]any, m.maxQueueSize)
	m.clients[id] = &client{username: username, queue: q}
	if m.userClients[username] == nil {
		m.userClients[username] = map[int64]bool{}
	}
	m.userClients[username][id] = true

	logging.Info("SSE", "added client %d for user %s", id, username)
	return id, q
}

// RemoveClient deregisters clientID and reports whether it was present.
func (m *Manager) RemoveClient(clientID int64, username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.clients[clientID]
	m.cleanupDeadClientLocked(clientID)
	if existed {
		logging.Info("SSE", "removed client %d for user %s", clientID, username)
	}
	return existed
}

// Broadcast delivers msg, stamped with a fresh monotonic id, to every
// connected client. Clients whose queue is full are evicted rather than
// blocked. It returns the number of clients the message was enqueued for.
func (m *Manager) Broadcast(msg map[string]any) int {
	m.mu.Lock()
	envelope := m.nextEnvelopeLocked(msg)

	delivered := 0
	var dead []int64
	for id, c := range m.clients {
		select {
		case c.queue <- envelope:
			delivered++
		default:
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		m.cleanupDeadClientLocked(id)
	}
	m.mu.Unlock()

	if len(dead) > 0 {
		logging.Warn("SSE", "broadcast evicted %d slow clients", len(dead))
	}
	return delivered
}

// SendToClient delivers msg to clientID only. It returns false if the
// client is unknown or its queue is full (in which case the client is
// evicted).
func (m *Manager) SendToClient(clientID int64, msg map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[clientID]
	if !ok {
		return false
	}
	envelope := m.nextEnvelopeLocked(msg)

	select {
	case c.queue <- envelope:
		return true
	default:
		logging.Warn("SSE", "queue full for client %d, removing", clientID)
		m.cleanupDeadClientLocked(clientID)
		return false
	}
}

// SendToUser delivers msg to every client belonging to username, returning
// true if at least one delivery succeeded.
func (m *Manager) SendToUser(username string, msg map[string]any) bool {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.userClients[username]))
	for id := range m.userClients[username] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	delivered := false
	for _, id := range ids {
		if m.SendToClient(id, msg) {
			delivered = true
		}
	}
	return delivered
}

// MissedSince returns every history entry with id greater than
// lastEventID, in allocation order. Entries older than the ring are lost.
func (m *Manager) MissedSince(lastEventID int64) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []map[string]any
	for _, msg := range m.history {
		if id, _ := msg["id"].(int64); id > lastEventID {
			out = append(out, msg)
		}
	}
	return out
}

// Stats reports client and history counts for the admin surface.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dist := make(map[string]int, len(m.userClients))
	for user, set := range m.userClients {
		dist[user] = len(set)
	}
	return map[string]any{
		"total_clients":        len(m.clients),
		"total_users":          len(m.userClients),
		"user_distribution":    dist,
		"message_history_size": len(m.history),
		"max_queue_size":       m.maxQueueSize,
	}
}

// CleanupAll drops every client and clears the replay history, for server
// shutdown.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients = make(map[int64]*client)
	m.userClients = make(map[string]map[int64]bool)
	m.history = nil
	logging.Info("SSE", "cleaned up all clients and resources")
}

// nextEnvelopeLocked stamps msg with the next monotonic message id, records
// it in the bounded history ring, and returns the stamped copy. Callers
// must hold m.mu for writing.
func (m *Manager) nextEnvelopeLocked(msg map[string]any) map[string]any {
	m.nextMessageID++
	envelope := make(map[string]any, len(msg)+1)
	for k, v := range msg {
		envelope[k] = v
	}
	envelope["id"] = m.nextMessageID

	m.history = append(m.history, envelope)
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
	return envelope
}

// cleanupDeadClientLocked removes clientID from both the client and
// per-user maps. Callers must hold m.mu for writing.
func (m *Manager) cleanupDeadClientLocked(clientID int64) {
	c, ok := m.clients[clientID]
	if !ok {
		return
	}
	delete(m.clients, clientID)
	if set := m.userClients[c.username]; set != nil {
		delete(set, clientID)
		if len(set) == 0 {
			delete(m.userClients, c.username)
		}
	}
}
