package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	groupID  string
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string, groupID string) *mockClient {
	return &mockClient{
		id:       id,
		groupID:  groupID,
		messages: make([][]byte, 0),
	}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) GroupID() string {
	return m.groupID
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

	client1 := newMockClient("client-1", "group-a")
	client2 := newMockClient("client-2", "group-a")
	client3 := newMockClient("client-3", "group-b")

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount("group-a"))
	assert.Equal(t, 1, hub.ClientCount("group-b"))
	assert.Equal(t, 0, hub.ClientCount("missing"))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount("group-a"))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.ClientCount("group-a"))
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_RegisterTwiceCountsOnce(t *testing.T) {
	hub := NewHub()
	client := newMockClient("client-1", "group-a")

	hub.Register(client)
	hub.Register(client)

	assert.Equal(t, 1, hub.TotalClientCount())
}

func TestHub_Broadcast_GroupIsolation(t *testing.T) {
	hub := NewHub()

	clientA1 := newMockClient("client-a1", "group-a")
	clientA2 := newMockClient("client-a2", "group-a")
	clientB := newMockClient("client-b", "group-b")

	hub.Register(clientA1)
	hub.Register(clientA2)
	hub.Register(clientB)

	hub.Broadcast("group-a", GroupUpdated(map[string]interface{}{"groupId": "group-a"}))

	assert.Eventually(t, func() bool {
		return len(clientA1.GetMessages()) == 1 && len(clientA2.GetMessages()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, clientB.GetMessages(), 0, "clients in other groups must not receive the event")
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	clientCount := 50

	clients := make([]*mockClient, clientCount)
	for i := 0; i < clientCount; i++ {
		clients[i] = newMockClient(fmt.Sprintf("client-%d", i), fmt.Sprintf("group-%d", i%5))
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

	for i := 0; i < clientCount; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Broadcast(fmt.Sprintf("group-%d", idx%5), GroupUpdated(nil))
		}(i)
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}
	wg.Wait()

	for g := 0; g < 5; g++ {
		assert.Equal(t, 0, hub.ClientCount(fmt.Sprintf("group-%d", g)))
	}
}

func TestHub_UnregisterNonexistent(t *testing.T) {
	hub := NewHub()

	require.NotPanics(t, func() {
		hub.Unregister(newMockClient("client-1", "group-a"))
	})
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_BroadcastToEmptyGroup(t *testing.T) {
	hub := NewHub()

	require.NotPanics(t, func() {
		hub.Broadcast("nobody-here", GroupUpdated(nil))
	})
}

func TestHub_Metrics(t *testing.T) {
	hub := NewHub()
	m := metrics.New(prometheus.NewRegistry())
	hub.SetMetrics(m)

	client1 := newMockClient("client-1", "group-a")
	client2 := newMockClient("client-2", "group-b")
	hub.Register(client1)
	hub.Register(client2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebSocketClients))

	hub.Unregister(client1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebSocketClients))
}

// finalMockClient records whether its last frame arrived through SendFinal
type finalMockClient struct {
	*mockClient
	finals int
}

func (f *finalMockClient) SendFinal(data []byte) error {
	f.mu.Lock()
	f.finals++
	f.mu.Unlock()
	return f.Send(data)
}

func (f *finalMockClient) FinalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finals
}

func TestHub_GroupDeletedDetachesSubscribers(t *testing.T) {
	hub := NewHub()
	m := metrics.New(prometheus.NewRegistry())
	hub.SetMetrics(m)

	plain := newMockClient("client-a1", "group-a")
	flushing := &finalMockClient{mockClient: newMockClient("client-a2", "group-a")}
	other := newMockClient("client-b", "group-b")
	hub.Register(plain)
	hub.Register(flushing)
	hub.Register(other)

	hub.Broadcast("group-a", GroupDeleted(map[string]interface{}{"groupId": "group-a"}))

	assert.Equal(t, 0, hub.ClientCount("group-a"))
	assert.Equal(t, 1, hub.TotalClientCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebSocketClients))

	assert.Eventually(t, func() bool {
		return len(plain.GetMessages()) == 1 && plain.IsClosed() && flushing.FinalCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, flushing.IsClosed(), "clients with SendFinal close themselves after writing")
	assert.False(t, other.IsClosed())

	// Later unregisters from the pumps are no-ops
	hub.Unregister(plain)
	hub.Unregister(flushing)
	assert.Equal(t, 1, hub.TotalClientCount())
}

func TestHub_GroupUpdatedKeepsSubscribers(t *testing.T) {
	hub := NewHub()
	client := newMockClient("client-1", "group-a")
	hub.Register(client)

	hub.Broadcast("group-a", GroupUpdated(map[string]interface{}{"groupId": "group-a"}))

	assert.Eventually(t, func() bool { return len(client.GetMessages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount("group-a"))
	assert.False(t, client.IsClosed())
}
