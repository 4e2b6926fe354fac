package channel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	r.Register("echo", func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var in map[string]string
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return in, nil
	})

	msg, err := NewMessage("echo", map[string]string{"hello": "world"})
	require.NoError(t, err)

	resp := r.Dispatch(context.Background(), msg)
	require.Empty(t, resp.Error)
	require.JSONEq(t, `{"hello":"world"}`, string(resp.Result))
}

func TestRouterUnknownAction(t *testing.T) {
	r := NewRouter()
	resp := r.Dispatch(context.Background(), Message{ID: "x", Action: "nope"})
	require.Equal(t, "Unknown action", resp.Error)
}

func TestRouterHandlerErrorBecomesResponse(t *testing.T) {
	r := NewRouter()
	r.Register("boom", func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, context.DeadlineExceeded
	})

	resp := r.Dispatch(context.Background(), Message{ID: "x", Action: "boom"})
	require.Equal(t, context.DeadlineExceeded.Error(), resp.Error)
}

func TestRouterHandlerPanicIsContained(t *testing.T) {
	r := NewRouter()
	r.Register("panic", func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		panic("bad handler")
	})

	resp := r.Dispatch(context.Background(), Message{ID: "x", Action: "panic"})
	require.Contains(t, resp.Error, "internal error")
}

func TestRouterNilResult(t *testing.T) {
	r := NewRouter()
	r.Register("fire", func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	})

	resp := r.Dispatch(context.Background(), Message{ID: "x", Action: "fire"})
	require.Empty(t, resp.Error)
	require.Empty(t, resp.Result)
}
