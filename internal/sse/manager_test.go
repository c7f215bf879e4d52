package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddClientRegistersUnderUser(t *testing.T) {
	m := New()
	id, queue := m.AddClient("alice")
	assert.Equal(t, int64(1), id)
	assert.NotNil(t, queue)

	stats := m.Stats()
	assert.Equal(t, 1, stats["total_clients"])
	assert.Equal(t, 1, stats["total_users"])
}

func TestClientIDsAreMonotonic(t *testing.T) {
	m := New()
	id1, _ := m.AddClient("alice")
	id2, _ := m.AddClient("bob")
	assert.Less(t, id1, id2)
}

func TestRemoveClientReportsPresence(t *testing.T) {
	m := New()
	id, _ := m.AddClient("alice")

	assert.True(t, m.RemoveClient(id, "alice"))
	assert.False(t, m.RemoveClient(id, "alice"))
}

func TestBroadcastDeliversToAllClientsWithMonotonicID(t *testing.T) {
	m := New()
	_, q1 := m.AddClient("alice")
	_, q2 := m.AddClient("bob")

	n := m.Broadcast(map[string]any{"type": "mcp_activity"})
	assert.Equal(t, 2, n)

	msg1 := <-q1
	msg2 := <-q2
	assert.Equal(t, int64(1), msg1["id"])
	assert.Equal(t, int64(1), msg2["id"])
}

func TestBroadcastEvictsClientOnFullQueue(t *testing.T) {
	m := NewWithLimits(1, 10)
	id, q := m.AddClient("alice")

	m.Broadcast(map[string]any{"n": 1})
	m.Broadcast(map[string]any{"n": 2}) // queue (cap 1) already holds the first message

	stats := m.Stats()
	assert.Equal(t, 0, stats["total_clients"], "client with a full queue is evicted")
	assert.False(t, m.RemoveClient(id, "alice"))

	msg := <-q
	assert.Equal(t, 1, msg["n"])
}

func TestSendToClientDeliversOnlyToThatClient(t *testing.T) {
	m := New()
	id1, q1 := m.AddClient("alice")
	_, q2 := m.AddClient("bob")

	ok := m.SendToClient(id1, map[string]any{"hello": "alice"})
	require.True(t, ok)

	msg := <-q1
	assert.Equal(t, "alice", msg["hello"])
	select {
	case <-q2:
		t.Fatal("bob should not have received alice's message")
	default:
	}
}

func TestSendToClientUnknownIDReturnsFalse(t *testing.T) {
	m := New()
	assert.False(t, m.SendToClient(999, map[string]any{}))
}

func TestSendToUserDeliversToAllOfThatUsersClients(t *testing.T) {
	m := New()
	m.AddClient("alice")
	m.AddClient("alice")
	m.AddClient("bob")

	delivered := m.SendToUser("alice", map[string]any{"x": 1})
	assert.True(t, delivered)
}

func TestSendToUserWithNoClientsReturnsFalse(t *testing.T) {
	m := New()
	assert.False(t, m.SendToUser("nobody", map[string]any{}))
}

func TestMissedSinceReturnsOnlyNewerEntries(t *testing.T) {
	m := New()
	m.AddClient("alice")

	m.Broadcast(map[string]any{"n": 1})
	m.Broadcast(map[string]any{"n": 2})
	m.Broadcast(map[string]any{"n": 3})

	missed := m.MissedSince(1)
	require.Len(t, missed, 2)
	assert.Equal(t, int64(2), missed[0]["id"])
	assert.Equal(t, int64(3), missed[1]["id"])
}

func TestMissedSinceRingEvictsOldestEntries(t *testing.T) {
	m := NewWithLimits(100, 2)
	m.AddClient("alice")

	m.Broadcast(map[string]any{"n": 1})
	m.Broadcast(map[string]any{"n": 2})
	m.Broadcast(map[string]any{"n": 3})

	missed := m.MissedSince(0)
	require.Len(t, missed, 2, "history ring only keeps the last 2 entries")
	assert.Equal(t, int64(2), missed[0]["id"])
	assert.Equal(t, int64(3), missed[1]["id"])
}

func TestCleanupAllClearsEverything(t *testing.T) {
	m := New()
	m.AddClient("alice")
	m.Broadcast(map[string]any{"n": 1})

	m.CleanupAll()

	stats := m.Stats()
	assert.Equal(t, 0, stats["total_clients"])
	assert.Equal(t, 0, stats["message_history_size"])
	assert.Empty(t, m.MissedSince(0))
}
