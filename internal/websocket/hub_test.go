package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	userID   string
	messages [][]byte
	mu       sync.Mutex
	closed   bool
	final    []byte
}

func newMockClient(id, userID string) *mockClient {
	return &mockClient{
		id:       id,
		userID:   userID,
		messages: make([][]byte, 0),
	}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) UserID() string {
	return m.userID
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Shutdown(final []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.final = final
	m.closed = true
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	client1 := newMockClient("client-1", "alice")
	client2 := newMockClient("client-2", "alice")
	client3 := newMockClient("client-3", "bob")

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount("alice"))
	assert.Equal(t, 1, hub.ClientCount("bob"))
	assert.Equal(t, 0, hub.ClientCount("nobody"))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount("alice"))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.ClientCount("alice"))
	assert.Equal(t, 0, hub.ClientCount("bob"))
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_Broadcast_UserIsolation(t *testing.T) {
	hub := NewHub()

	// Two tabs for alice
	aliceTab1 := newMockClient("client-1a", "alice")
	aliceTab2 := newMockClient("client-1b", "alice")
	bob := newMockClient("client-2", "bob")

	hub.Register(aliceTab1)
	hub.Register(aliceTab2)
	hub.Register(bob)

	hub.Broadcast("alice", ProfileUpdated(map[string]interface{}{"username": "alice"}))

	// Give goroutines time to process
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, aliceTab1.GetMessages(), 1, "first tab should receive 1 message")
	assert.Len(t, aliceTab2.GetMessages(), 1, "second tab should receive 1 message")
	assert.Len(t, bob.GetMessages(), 0, "bob should not receive alice's events")
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	users := []string{"u0", "u1", "u2", "u3", "u4"}

	var wg sync.WaitGroup
	clientCount := 50

	clients := make([]*mockClient, clientCount)
	for i := 0; i < clientCount; i++ {
		clients[i] = newMockClient(fmt.Sprintf("client-%d", i), users[i%len(users)])
	}

	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, clientCount, hub.TotalClientCount())

	// Concurrently broadcast and unregister
	for i := 0; i < clientCount; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Broadcast(users[idx%len(users)], AvatarUpdated(nil))
		}(i)
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}
	wg.Wait()

	for _, u := range users {
		assert.Equal(t, 0, hub.ClientCount(u))
	}
}

func TestHub_UnregisterNonexistent(t *testing.T) {
	hub := NewHub()

	client := newMockClient("client-1", "alice")

	require.NotPanics(t, func() {
		hub.Unregister(client)
	})
}

func TestHub_BroadcastToUserWithoutClients(t *testing.T) {
	hub := NewHub()

	require.NotPanics(t, func() {
		hub.Broadcast("nobody", SessionSignedOut(nil))
	})
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub()

	alice1 := newMockClient("client-1", "alice")
	alice2 := newMockClient("client-2", "alice")
	bob := newMockClient("client-3", "bob")
	hub.Register(alice1)
	hub.Register(alice2)
	hub.Register(bob)

	hub.Disconnect("alice", SessionSignedOut(map[string]interface{}{"userId": "alice"}))

	assert.Equal(t, 0, hub.ClientCount("alice"))
	assert.Equal(t, 1, hub.ClientCount("bob"))
	for _, c := range []*mockClient{alice1, alice2} {
		assert.True(t, c.IsClosed())
		assert.Contains(t, string(c.final), `"session.signed_out"`)
	}
	assert.False(t, bob.IsClosed())

	// Later events no longer reach the signed-out user
	hub.Broadcast("alice", ProfileUpdated(map[string]interface{}{"id": "alice"}))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, alice1.GetMessages())
	assert.Empty(t, alice2.GetMessages())
}

func TestHub_Disconnect_UnknownUser(t *testing.T) {
	hub := NewHub()
	hub.Disconnect("nobody", SessionSignedOut(nil))
	assert.Equal(t, 0, hub.TotalClientCount())
}
