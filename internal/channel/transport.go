package channel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/oklog/ulid/v2"

	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

// ActionConnectionAck is the handshake sent by the receiving side once a
// connection is accepted; the client is not ready until it arrives.
const ActionConnectionAck = "CONNECTION_ACK"

// Message is the unit exchanged over a port. Payload is an action-specific
// JSON document; ReplyTo correlates responses to requests.
type Message struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

func NewMessage(action string, payload interface{}) (Message, error) {
	msg := Message{ID: ulid.Make().String(), Action: action}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, curatorErrors.Wrap(err, "marshal payload")
		}
		msg.Payload = data
	}
	return msg, nil
}

// Port is one end of an established connection. Done is closed when either
// end disconnects; it is the only cancellation signal a port delivers.
type Port interface {
	Send(ctx context.Context, msg Message) error
	Receive() <-chan Message
	Done() <-chan struct{}
	Close() error
}

// Connector establishes a connection to the receiving side, mirroring the
// host's runtime.connect({name}).
type Connector interface {
	Connect(ctx context.Context, name string) (Port, error)
}

type pipe struct {
	ab   chan Message
	ba   chan Message
	done chan struct{}
	once sync.Once
}

type pipePort struct {
	pipe *pipe
	out  chan<- Message
	in   <-chan Message
}

// NewPipe returns two connected in-process ports. Closing either end
// disconnects both.
func NewPipe(buffer int) (Port, Port) {
	if buffer <= 0 {
		buffer = 16
	}
	p := &pipe{
		ab:   make(chan Message, buffer),
		ba:   make(chan Message, buffer),
		done: make(chan struct{}),
	}
	a := &pipePort{pipe: p, out: p.ab, in: p.ba}
	b := &pipePort{pipe: p, out: p.ba, in: p.ab}
	return a, b
}

func (p *pipePort) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.pipe.done:
		return curatorErrors.Host("port disconnected")
	default:
	}

	select {
	case p.out <- msg:
		return nil
	case <-p.pipe.done:
		return curatorErrors.Host("port disconnected")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipePort) Receive() <-chan Message {
	return p.in
}

func (p *pipePort) Done() <-chan struct{} {
	return p.pipe.done
}

func (p *pipePort) Close() error {
	p.pipe.once.Do(func() {
		close(p.pipe.done)
	})
	return nil
}
