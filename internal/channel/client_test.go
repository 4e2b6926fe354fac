package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

func testClientConfig() ClientConfig {
	return ClientConfig{
		MaxQueueSize:   100,
		BatchSize:      10,
		MessageTimeout: 200 * time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
		MaxRetries:     3,
		CooldownWindow: 50 * time.Millisecond,
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	c := NewClient(nil, "test", testClientConfig(), nil)

	for i := 1; i <= 101; i++ {
		c.Enqueue(Message{ID: fmt.Sprintf("%d", i), Action: "n"})
	}

	queued := c.QueuedMessages()
	require.Len(t, queued, 100)
	require.Equal(t, "2", queued[0].ID, "oldest entry dropped")
	require.Equal(t, "101", queued[99].ID, "newest entry admitted")
}

func TestSendWhileNotReadyQueues(t *testing.T) {
	c := NewClient(nil, "test", testClientConfig(), nil)

	require.NoError(t, c.Send(context.Background(), Message{ID: "a", Action: "x"}))
	require.Equal(t, 1, c.QueueLen())
	require.Equal(t, StateDisconnected, c.State())
}

// failAfterPort delivers the first n sends, then fails every send.
type failAfterPort struct {
	mu       sync.Mutex
	capacity int
	sent     []Message
	done     chan struct{}
}

func newFailAfterPort(capacity int) *failAfterPort {
	return &failAfterPort{capacity: capacity, done: make(chan struct{})}
}

func (p *failAfterPort) Send(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sent) >= p.capacity {
		return curatorErrors.Host("port saturated")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *failAfterPort) Receive() <-chan Message { return nil }
func (p *failAfterPort) Done() <-chan struct{}  { return p.done }
func (p *failAfterPort) Close() error           { return nil }

func TestFlushRequeuesFailedBatchInOrder(t *testing.T) {
	cfg := testClientConfig()
	cfg.BatchSize = 5
	c := NewClient(nil, "test", cfg, nil)

	for i := 1; i <= 12; i++ {
		c.Enqueue(Message{ID: fmt.Sprintf("%d", i), Action: "n"})
	}

	// Port accepts the first batch, then fails mid second batch.
	port := newFailAfterPort(7)
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	c.flush(context.Background(), port)

	// First batch (1-5) delivered, plus 6 and 7 before the failure.
	require.Len(t, port.sent, 7)
	require.Equal(t, "1", port.sent[0].ID)
	require.Equal(t, "7", port.sent[6].ID)

	// The failed batch (6-10) went back to the front in order, ahead of 11-12.
	queued := c.QueuedMessages()
	require.Len(t, queued, 7)
	want := []string{"6", "7", "8", "9", "10", "11", "12"}
	for i, id := range want {
		require.Equal(t, id, queued[i].ID, "position %d", i)
	}
}

func TestFlushDrainsQueueInBatches(t *testing.T) {
	cfg := testClientConfig()
	cfg.BatchSize = 4
	c := NewClient(nil, "test", cfg, nil)

	for i := 1; i <= 10; i++ {
		c.Enqueue(Message{ID: fmt.Sprintf("%d", i), Action: "n"})
	}

	port := newFailAfterPort(100)
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	c.flush(context.Background(), port)

	require.Equal(t, 0, c.QueueLen())
	require.Len(t, port.sent, 10)
	for i := 0; i < 10; i++ {
		require.Equal(t, fmt.Sprintf("%d", i+1), port.sent[i].ID, "FIFO order preserved")
	}
}

// refusingConnector always fails to connect.
type refusingConnector struct {
	mu       sync.Mutex
	attempts int
}

func (r *refusingConnector) Connect(ctx context.Context, name string) (Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return nil, curatorErrors.Host("connection refused")
}

func (r *refusingConnector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func TestClientEntersCoolingDownAfterMaxRetries(t *testing.T) {
	connector := &refusingConnector{}
	c := NewClient(connector, "test", testClientConfig(), nil)

	require.NoError(t, c.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, c.Stop(ctx))
	}()

	require.Eventually(t, func() bool {
		return c.State() == StateCoolingDown
	}, 2*time.Second, time.Millisecond, "client should cool down after %d failures", testClientConfig().MaxRetries)

	// The cooldown window resets the counter and connecting resumes.
	require.Eventually(t, func() bool {
		return connector.count() > testClientConfig().MaxRetries
	}, 2*time.Second, time.Millisecond, "retries should resume after cooldown")
}

func TestClientBecomesReadyOnAck(t *testing.T) {
	router := NewRouter()
	server := NewServer(router, 16)
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop(context.Background())

	c := NewClient(server, "test", testClientConfig(), nil)
	c.Enqueue(Message{ID: "queued-1", Action: "noop"})

	require.NoError(t, c.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	}()

	require.Eventually(t, func() bool { return c.Ready() }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.QueueLen() == 0 }, 2*time.Second, time.Millisecond,
		"ack should trigger a queue flush")
	require.Equal(t, 0, c.Attempts(), "attempt counter resets on ack")
	require.Equal(t, StateConnected, c.State())
}

func TestServerRoutesAndReplies(t *testing.T) {
	router := NewRouter()
	router.Register("ping", func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return map[string]string{"pong": "yes"}, nil
	})
	server := NewServer(router, 16)
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop(context.Background())

	port, err := server.Connect(context.Background(), "test")
	require.NoError(t, err)
	defer port.Close()

	// First inbound frame is the handshake.
	ack := <-port.Receive()
	require.Equal(t, ActionConnectionAck, ack.Action)

	req := Message{ID: "req-1", Action: "ping"}
	require.NoError(t, port.Send(context.Background(), req))

	reply := <-port.Receive()
	require.Equal(t, "req-1", reply.ReplyTo)
	require.JSONEq(t, `{"result":{"pong":"yes"}}`, string(reply.Payload))
}
