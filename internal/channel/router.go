package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one inbound action. The returned value is serialized into
// the response; errors never escape the router.
type Handler func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// Response is the JSON-serializable reply for an inbound message. Errors
// cross the boundary as a string, never as a thrown error.
type Response struct {
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Router maps inbound action names to handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

func (r *Router) Register(action string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = handler
}

func (r *Router) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		actions = append(actions, action)
	}
	return actions
}

// Dispatch routes one message. A single bad message must never crash the
// channel: unknown actions, handler errors and panics all become error
// responses.
func (r *Router) Dispatch(ctx context.Context, msg Message) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Handler panicked", "action", msg.Action, "panic", rec)
			resp = Response{Error: fmt.Sprintf("internal error: %v", rec)}
		}
	}()

	r.mu.RLock()
	handler, ok := r.handlers[msg.Action]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("Unknown action received", "action", msg.Action, "id", msg.ID)
		return Response{Error: "Unknown action"}
	}

	result, err := handler(ctx, msg.Payload)
	if err != nil {
		slog.Warn("Handler failed", "action", msg.Action, "id", msg.ID, "error", err)
		return Response{Error: err.Error()}
	}

	if result == nil {
		return Response{}
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to marshal handler result", "action", msg.Action, "error", err)
		return Response{Error: "internal error: unserializable result"}
	}
	return Response{Result: data}
}
