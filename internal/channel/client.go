package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tabcurator/tabcurator/internal/concurrency"
	"github.com/tabcurator/tabcurator/internal/config"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

type ConnState string

const (
	StateDisconnected ConnState = "DISCONNECTED"
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	StateCoolingDown  ConnState = "COOLING_DOWN"
)

type ClientConfig struct {
	MaxQueueSize   int
	BatchSize      int
	MessageTimeout time.Duration
	RetryDelay     time.Duration
	MaxRetries     int
	CooldownWindow time.Duration
}

// ClientConfigFrom resolves the channel config section into concrete values.
func ClientConfigFrom(cfg config.ChannelConfig) (ClientConfig, error) {
	messageTimeout, err := config.DurationOrDefault(cfg.MessageTimeout, config.DefaultChannelMessageTimeout)
	if err != nil {
		return ClientConfig{}, curatorErrors.Wrap(err, "parse message timeout")
	}
	retryDelay, err := config.DurationOrDefault(cfg.RetryDelay, config.DefaultChannelRetryDelay)
	if err != nil {
		return ClientConfig{}, curatorErrors.Wrap(err, "parse retry delay")
	}
	cooldown, err := config.DurationOrDefault(cfg.CooldownWindow, config.DefaultChannelCooldownWindow)
	if err != nil {
		return ClientConfig{}, curatorErrors.Wrap(err, "parse cooldown window")
	}

	out := ClientConfig{
		MaxQueueSize:   cfg.MaxQueueSize,
		BatchSize:      cfg.BatchSize,
		MessageTimeout: messageTimeout,
		RetryDelay:     retryDelay,
		MaxRetries:     cfg.MaxRetries,
		CooldownWindow: cooldown,
	}
	out.applyDefaults()
	return out, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = config.DefaultChannelMaxQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = config.DefaultChannelBatchSize
	}
	if c.MessageTimeout <= 0 {
		c.MessageTimeout = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = config.DefaultChannelMaxRetries
	}
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = 30 * time.Second
	}
}

// Client maintains a persistent connection to the receiving side. Messages
// sent while the connection is not ready queue up in a bounded FIFO; when the
// queue is full the oldest entry is dropped to admit the newest.
type Client struct {
	connector Connector
	portName  string
	cfg       ClientConfig
	onMessage func(Message)

	mu       sync.Mutex
	state    ConnState
	ready    bool
	attempts int
	queue    []Message
	port     Port

	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewClient(connector Connector, portName string, cfg ClientConfig, onMessage func(Message)) *Client {
	cfg.applyDefaults()
	return &Client{
		connector: connector,
		portName:  portName,
		cfg:       cfg,
		onMessage: onMessage,
		state:     StateDisconnected,
	}
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	c.started = true
	c.quit = make(chan struct{})

	c.wg.Add(1)
	concurrency.SafeGo(func() {
		defer c.wg.Done()
		c.run(ctx)
	}, nil)

	slog.Info("Message channel client started", "port", c.portName)
	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.quit)
	port := c.port
	c.mu.Unlock()

	if port != nil {
		port.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Message channel client stopped", "port", c.portName)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// QueuedMessages returns a copy of the pending queue, oldest first.
func (c *Client) QueuedMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.queue...)
}

// Send delivers the message when the channel is ready, otherwise it queues it
// for the next flush.
func (c *Client) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	ready := c.ready
	port := c.port
	c.mu.Unlock()

	if !ready || port == nil {
		c.Enqueue(msg)
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.MessageTimeout)
	defer cancel()

	if err := port.Send(sendCtx, msg); err != nil {
		slog.Warn("Direct send failed, queueing message", "action", msg.Action, "error", err)
		c.Enqueue(msg)
		port.Close()
		return nil
	}
	return nil
}

// Enqueue appends to the bounded outbound queue. A full queue drops the
// oldest entry: newest wins.
func (c *Client) Enqueue(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(msg)
}

// caller holds c.mu
func (c *Client) enqueueLocked(msg Message) {
	if len(c.queue) >= c.cfg.MaxQueueSize {
		dropped := c.queue[0]
		c.queue = c.queue[1:]
		slog.Warn("Outbound queue full, dropping oldest message", "dropped_action", dropped.Action, "dropped_id", dropped.ID)
	}
	c.queue = append(c.queue, msg)
}

func (c *Client) run(ctx context.Context) {
	for {
		if c.stopping(ctx) {
			return
		}

		c.setState(StateConnecting)
		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		port, err := c.connector.Connect(ctx, c.portName)
		if err != nil {
			slog.Warn("Connect failed", "port", c.portName, "attempt", attempts, "error", err)
			c.setState(StateDisconnected)

			if attempts >= c.cfg.MaxRetries {
				c.setState(StateCoolingDown)
				slog.Warn("Max connect retries reached, cooling down", "port", c.portName, "window", c.cfg.CooldownWindow)
				if !c.sleep(ctx, c.cfg.CooldownWindow) {
					return
				}
				c.mu.Lock()
				c.attempts = 0
				c.mu.Unlock()
				c.setState(StateDisconnected)
				continue
			}

			if !c.sleep(ctx, c.cfg.RetryDelay) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.port = port
		c.state = StateConnected
		c.mu.Unlock()

		c.serve(ctx, port)

		c.mu.Lock()
		c.ready = false
		c.port = nil
		c.state = StateDisconnected
		c.mu.Unlock()

		slog.Info("Channel disconnected, scheduling reconnect", "port", c.portName, "delay", c.cfg.RetryDelay)
		if !c.sleep(ctx, c.cfg.RetryDelay) {
			return
		}
	}
}

// serve pumps inbound messages until the port disconnects.
func (c *Client) serve(ctx context.Context, port Port) {
	for {
		select {
		case <-ctx.Done():
			port.Close()
			return
		case <-c.quit:
			port.Close()
			return
		case <-port.Done():
			return
		case msg := <-port.Receive():
			if msg.Action == ActionConnectionAck {
				c.mu.Lock()
				c.ready = true
				c.attempts = 0
				c.mu.Unlock()
				slog.Debug("Connection acknowledged, flushing queue", "port", c.portName)
				c.flush(ctx, port)
				continue
			}
			if c.onMessage != nil {
				c.onMessage(msg)
			}
		}
	}
}

// flush drains the queue in batches. A batch with any failure is re-queued
// at the front in order and flushing stops for this cycle, so a failing
// connection is never hot-looped.
func (c *Client) flush(ctx context.Context, port Port) {
	for {
		c.mu.Lock()
		if !c.ready || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		n := c.cfg.BatchSize
		if n > len(c.queue) {
			n = len(c.queue)
		}
		batch := append([]Message(nil), c.queue[:n]...)
		c.queue = append([]Message(nil), c.queue[n:]...)
		c.mu.Unlock()

		for i, msg := range batch {
			sendCtx, cancel := context.WithTimeout(ctx, c.cfg.MessageTimeout)
			err := port.Send(sendCtx, msg)
			cancel()
			if err != nil {
				slog.Warn("Batch send failed, re-queueing batch", "failed_at", i, "batch_size", len(batch), "error", err)
				c.mu.Lock()
				c.queue = append(append([]Message(nil), batch...), c.queue...)
				c.mu.Unlock()
				return
			}
		}
	}
}

func (c *Client) setState(state ConnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.quit:
		return true
	default:
		return false
	}
}

// sleep waits d, returning false when the client is shutting down.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.quit:
		return false
	}
}
