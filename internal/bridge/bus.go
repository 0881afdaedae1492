package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoReceiver is returned when nothing is registered under the endpoint,
	// e.g. a tab whose observer was never injected or has gone away.
	ErrNoReceiver = errors.New("receiving end does not exist")
	ErrClosed     = errors.New("bus closed")
)

const inboxSize = 32

// Handler processes one message at a time. The returned value is encoded as
// the JSON response.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) any
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) any

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) any {
	return f(ctx, msg)
}

type envelope struct {
	ctx   context.Context
	msg   Message
	reply chan result
}

type result struct {
	data json.RawMessage
	err  error
}

type endpoint struct {
	name    string
	handler Handler
	inbox   chan envelope
	done    chan struct{}
	once    sync.Once
}

// Bus routes messages between named endpoints. Every endpoint drains its
// inbox on a single goroutine, so a handler never runs concurrently with
// itself.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[string]*endpoint
	wg        sync.WaitGroup
	closed    bool
	logger    *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		endpoints: make(map[string]*endpoint),
		logger:    logger.Named("bus"),
	}
}

// Register starts serving name with h, replacing any previous handler. The
// returned function unregisters it.
func (b *Bus) Register(name string, h Handler) func() {
	ep := &endpoint{
		name:    name,
		handler: h,
		inbox:   make(chan envelope, inboxSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	if old, ok := b.endpoints[name]; ok {
		old.stop()
	}
	b.endpoints[name] = ep
	b.wg.Add(1)
	b.mu.Unlock()

	go b.serve(ep)

	return func() {
		b.mu.Lock()
		if cur, ok := b.endpoints[name]; ok && cur == ep {
			delete(b.endpoints, name)
		}
		b.mu.Unlock()
		ep.stop()
	}
}

// Has reports whether an endpoint is registered under name.
func (b *Bus) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.endpoints[name]
	return ok
}

// Call sends msg to the endpoint and waits for its response, decoding it into
// out when out is non-nil.
func (b *Bus) Call(ctx context.Context, name string, msg Message, out any) error {
	ep, err := b.lookup(name)
	if err != nil {
		return err
	}

	env := envelope{ctx: ctx, msg: msg, reply: make(chan result, 1)}
	select {
	case ep.inbox <- env:
	case <-ep.done:
		return fmt.Errorf("%s: %w", name, ErrNoReceiver)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case res := <-env.reply:
		if res.err != nil {
			return res.err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.data, out); err != nil {
			return fmt.Errorf("decode %s response from %s: %w", msg.Type, name, err)
		}
		return nil
	case <-ep.done:
		return fmt.Errorf("%s: %w", name, ErrNoReceiver)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify delivers an advisory message without waiting for the handler. It
// never blocks the sender.
func (b *Bus) Notify(ctx context.Context, name string, msg Message) error {
	ep, err := b.lookup(name)
	if err != nil {
		return err
	}
	env := envelope{ctx: context.WithoutCancel(ctx), msg: msg, reply: make(chan result, 1)}
	select {
	case ep.inbox <- env:
		return nil
	case <-ep.done:
		return fmt.Errorf("%s: %w", name, ErrNoReceiver)
	default:
	}
	go func() {
		select {
		case ep.inbox <- env:
		case <-ep.done:
		}
	}()
	return nil
}

// Close stops every endpoint and waits for their loops to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	for name, ep := range b.endpoints {
		ep.stop()
		delete(b.endpoints, name)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) lookup(name string) (*endpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	ep, ok := b.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoReceiver)
	}
	return ep, nil
}

func (b *Bus) serve(ep *endpoint) {
	defer b.wg.Done()
	for {
		select {
		case <-ep.done:
			return
		case env := <-ep.inbox:
			if err := env.ctx.Err(); err != nil {
				env.reply <- result{err: err}
				continue
			}
			env.reply <- b.dispatch(ep, env)
		}
	}
}

func (b *Bus) dispatch(ep *endpoint, env envelope) (res result) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("endpoint", ep.name),
				zap.String("type", string(env.msg.Type)),
				zap.Any("panic", r))
			data, _ := json.Marshal(Fail(fmt.Errorf("%v", r)))
			res = result{data: data}
		}
	}()

	out := ep.handler.HandleMessage(env.ctx, env.msg)
	data, err := json.Marshal(out)
	if err != nil {
		data, _ = json.Marshal(Fail(fmt.Errorf("encode response: %w", err)))
	}
	return result{data: data}
}

func (ep *endpoint) stop() {
	ep.once.Do(func() { close(ep.done) })
}
