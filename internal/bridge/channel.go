package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/shared/id"
)

var ErrDisconnected = errors.New("render bridge disconnected")

// Recorder receives per-request observations. monitoring.Metrics satisfies it.
type Recorder interface {
	ObserveBridgeRequest(kind string, outcome string, d time.Duration)
}

// Response is the single reply deposited for a request.
type Response struct {
	Value interface{}
	Err   error
}

// Envelope pairs a request with its one-shot reply slot.
type Envelope struct {
	ID      id.RequestID
	Request Request

	submitted time.Time
	reply     chan Response
	once      sync.Once
}

func newEnvelope(req Request) *Envelope {
	return &Envelope{
		ID:        id.NewRequestID(),
		Request:   req,
		submitted: time.Now(),
		reply:     make(chan Response, 1),
	}
}

// Reply deposits the response. Only the first Reply or Drop has any effect;
// it reports whether this call was the one that settled the slot.
func (e *Envelope) Reply(value interface{}, err error) bool {
	settled := false
	e.once.Do(func() {
		e.reply <- Response{Value: value, Err: err}
		close(e.reply)
		settled = true
	})
	return settled
}

// Drop closes the slot without a value; the waiting caller sees
// ErrDisconnected.
func (e *Envelope) Drop() bool {
	settled := false
	e.once.Do(func() {
		close(e.reply)
		settled = true
	})
	return settled
}

// Channel is an unbounded multi-producer, single-consumer request queue.
type Channel struct {
	mu     sync.Mutex
	queue  []*Envelope
	closed bool
	notify chan struct{}
	done   chan struct{}

	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l.Named("bridge")
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Channel) { c.recorder = r }
}

// New creates an open channel.
func New(opts ...Option) *Channel {
	c := &Channel{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call submits req and waits for its reply.
func (c *Channel) Call(ctx context.Context, req Request) (interface{}, error) {
	p, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// Post submits req without waiting. The reply, if any, is discarded.
func (c *Channel) Post(req Request) error {
	_, err := c.submit(req)
	return err
}

// Pending is a queued request whose reply has not been read yet.
type Pending struct {
	c   *Channel
	env *Envelope
}

// Send queues req and returns without waiting. Requests are served in the
// order Send returns, so callers that must not block can submit first and
// wait elsewhere.
func (c *Channel) Send(req Request) (*Pending, error) {
	env, err := c.submit(req)
	if err != nil {
		return nil, err
	}
	return &Pending{c: c, env: env}, nil
}

// ID returns the request id.
func (p *Pending) ID() id.RequestID {
	return p.env.ID
}

// Wait blocks until the reply arrives, the slot is dropped or ctx ends.
func (p *Pending) Wait(ctx context.Context) (interface{}, error) {
	env := p.env
	select {
	case resp, ok := <-env.reply:
		if !ok {
			p.c.observe(env, "disconnected")
			return nil, fmt.Errorf("%s %s: %w", env.Request.Kind(), env.ID, ErrDisconnected)
		}
		if resp.Err != nil {
			p.c.observe(env, "error")
			return nil, resp.Err
		}
		p.c.observe(env, "ok")
		return resp.Value, nil
	case <-ctx.Done():
		p.c.observe(env, "cancelled")
		return nil, ctx.Err()
	}
}

// Call is the typed form of Channel.Call.
func Call[T any](ctx context.Context, c *Channel, req Request) (T, error) {
	p, err := c.Send(req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Await[T](ctx, p)
}

// Await is the typed form of Pending.Wait.
func Await[T any](ctx context.Context, p *Pending) (T, error) {
	var zero T
	v, err := p.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected reply type %T", p.env.Request.Kind(), v)
	}
	return out, nil
}

func (c *Channel) submit(req Request) (*Envelope, error) {
	env := newEnvelope(req)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", req.Kind(), ErrDisconnected)
	}
	c.queue = append(c.queue, env)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}

	c.logger.Debug("request submitted",
		zap.String("request_id", env.ID.String()),
		zap.String("kind", string(req.Kind())))
	return env, nil
}

// Next blocks until a request is available, the channel is closed or ctx
// ends. Only one goroutine may consume.
func (c *Channel) Next(ctx context.Context) (*Envelope, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			env := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return env, nil
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return nil, ErrDisconnected
		}

		select {
		case <-c.notify:
		case <-c.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued requests.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close tears the channel down. Queued requests are dropped and every
// waiting caller resolves with ErrDisconnected. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	close(c.done)
	c.mu.Unlock()

	for _, env := range pending {
		env.Drop()
	}
	if len(pending) > 0 {
		c.logger.Info("bridge closed with pending requests", zap.Int("dropped", len(pending)))
	}
}

// Done is closed once the channel is torn down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) observe(env *Envelope, outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveBridgeRequest(string(env.Request.Kind()), outcome, time.Since(env.submitted))
	}
}
