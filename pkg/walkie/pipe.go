package walkie

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
)

// NewPipe creates a connected in-process channel pair. The client end is
// handed to a Session; the server end plays the backend. It is useful for
// tests and local simulations.
func NewPipe() (*PipeServer, *PipeClient) {
	shared := &pipeShared{
		downlink: make(chan *Inbound, 1024),
		uplink:   make(chan *Outbound, 64),
		closed:   make(chan struct{}),
	}
	return &PipeServer{shared}, &PipeClient{shared}
}

type pipeShared struct {
	downlink chan *Inbound
	uplink   chan *Outbound

	mu        sync.Mutex
	closed    chan struct{}
	once      sync.Once
	serverErr error
	sendErr   error
}

func (p *pipeShared) close(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.serverErr = err
		p.mu.Unlock()
		close(p.closed)
	})
}

// PipeClient is the session side of a pipe. It implements Channel.
type PipeClient struct {
	p *pipeShared
}

// Messages yields what the server sends until either side closes.
func (c *PipeClient) Messages() iter.Seq2[*Inbound, error] {
	return func(yield func(*Inbound, error) bool) {
		for {
			// Drain queued messages before honoring a close.
			select {
			case msg := <-c.p.downlink:
				if !yield(msg, nil) {
					return
				}
				continue
			default:
			}
			select {
			case msg := <-c.p.downlink:
				if !yield(msg, nil) {
					return
				}
			case <-c.p.closed:
				c.p.mu.Lock()
				err := c.p.serverErr
				c.p.mu.Unlock()
				if err != nil {
					yield(nil, err)
				}
				return
			}
		}
	}
}

// Send delivers msg to the server end.
func (c *PipeClient) Send(ctx context.Context, msg *Outbound) error {
	c.p.mu.Lock()
	err := c.p.sendErr
	c.p.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-c.p.closed:
		return fmt.Errorf("pipe: send: %w", ErrClosed)
	default:
	}
	select {
	case c.p.uplink <- msg:
		return nil
	case <-c.p.closed:
		return fmt.Errorf("pipe: send: %w", ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both ends. Messages ends without an error.
func (c *PipeClient) Close() error {
	c.p.close(nil)
	return nil
}

// PipeServer is the backend side of a pipe.
type PipeServer struct {
	p *pipeShared
}

// Send queues msg for the client.
func (s *PipeServer) Send(msg *Inbound) error {
	select {
	case <-s.p.closed:
		return fmt.Errorf("pipe: send: %w", ErrClosed)
	default:
	}
	select {
	case s.p.downlink <- msg:
		return nil
	case <-s.p.closed:
		return fmt.Errorf("pipe: send: %w", ErrClosed)
	}
}

// Received returns the channel of messages sent by the client.
func (s *PipeServer) Received() <-chan *Outbound {
	return s.p.uplink
}

// FailSends makes every later client Send return err.
func (s *PipeServer) FailSends(err error) {
	s.p.mu.Lock()
	s.p.sendErr = err
	s.p.mu.Unlock()
}

// Drop closes the pipe from the server side as if the connection was lost.
func (s *PipeServer) Drop() {
	s.p.close(errors.New("pipe: connection dropped"))
}

// Close closes the pipe from the server side cleanly.
func (s *PipeServer) Close() {
	s.p.close(nil)
}

// PipeDialer dials a fixed client end. Each Dial returns the same client;
// Err, when set, is returned instead.
type PipeDialer struct {
	Client *PipeClient
	Err    error
	// Block makes Dial wait for ctx to end, simulating a hanging connect.
	Block bool
}

// Dial implements Dialer.
func (d *PipeDialer) Dial(ctx context.Context, _ string) (Channel, error) {
	if d.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Client, nil
}

// StaticNegotiator returns a fixed grant.
type StaticNegotiator struct {
	Grant Grant
	Err   error
}

// StartSession implements Negotiator.
func (n *StaticNegotiator) StartSession(context.Context, StartRequest) (*Grant, error) {
	if n.Err != nil {
		return nil, n.Err
	}
	g := n.Grant
	return &g, nil
}
