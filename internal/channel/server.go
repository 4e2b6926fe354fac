package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/tabcurator/tabcurator/internal/concurrency"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

// Server is the receiving side of the channel. Each accepted connection gets
// a CONNECTION_ACK before anything else; inbound messages are routed and the
// response is correlated back through ReplyTo.
type Server struct {
	router *Router
	buffer int

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewServer(router *Router, buffer int) *Server {
	if buffer <= 0 {
		buffer = 16
	}
	return &Server{router: router, buffer: buffer}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	s.quit = make(chan struct{})

	slog.Info("Message channel server started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.quit)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Message channel server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect accepts a new connection and returns the client end of it. The
// server end is served on its own goroutine.
func (s *Server) Connect(ctx context.Context, name string) (Port, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, curatorErrors.APIUnavailable("channel server not started")
	}
	s.wg.Add(1)
	s.mu.Unlock()

	serverEnd, clientEnd := NewPipe(s.buffer)

	concurrency.SafeGo(func() {
		defer s.wg.Done()
		s.serve(ctx, serverEnd, name)
	}, nil)

	return clientEnd, nil
}

func (s *Server) serve(ctx context.Context, port Port, name string) {
	defer port.Close()

	ack := Message{ID: ulid.Make().String(), Action: ActionConnectionAck}
	if err := port.Send(ctx, ack); err != nil {
		slog.Warn("Failed to send connection ack", "port", name, "error", err)
		return
	}
	slog.Debug("Connection accepted", "port", name)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-port.Done():
			return
		case msg := <-port.Receive():
			resp := s.router.Dispatch(ctx, msg)
			s.reply(ctx, port, msg, resp)
		}
	}
}

func (s *Server) reply(ctx context.Context, port Port, msg Message, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal response", "action", msg.Action, "error", err)
		data = []byte(`{"error":"internal error: unserializable response"}`)
	}
	out := Message{
		ID:      ulid.Make().String(),
		Action:  msg.Action,
		Payload: data,
		ReplyTo: msg.ID,
	}
	if err := port.Send(ctx, out); err != nil {
		slog.Warn("Failed to send response", "action", msg.Action, "reply_to", msg.ID, "error", err)
	}
}
