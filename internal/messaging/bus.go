// Package messaging connects the per-tab agents, the background worker and the
// panel. Each registered address runs its own loop and handles one message at
// a time; nothing else is shared between them.
//
// Two primitives exist. Push is fire-and-forget: delivered at most once, and
// silently lost if the receiver goes away. Request waits for a single response
// that the handler may give synchronously or, by returning true, later from
// another goroutine. A request always resolves: with the response, with
// ErrNoResponse if the handler gave none, or with ErrNoReceiver if the
// receiver is absent or torn down.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bidscanner/internal/models"
)

var (
	ErrNoReceiver        = errors.New("could not establish connection: receiving end does not exist")
	ErrNoResponse        = errors.New("message port closed before a response was received")
	ErrDropped           = errors.New("receiver inbox full, message dropped")
	ErrAlreadyRegistered = errors.New("address already registered")
)

const defaultInboxSize = 64

// Responder resolves a request. Only the first call has any effect.
type Responder func(models.Response)

// Handler processes messages for one address. Returning true keeps the
// response channel open so respond can be called later.
type Handler interface {
	HandleMessage(ctx context.Context, msg models.Message, sender Sender, respond Responder) bool
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, msg models.Message, sender Sender, respond Responder) bool

func (f HandlerFunc) HandleMessage(ctx context.Context, msg models.Message, sender Sender, respond Responder) bool {
	return f(ctx, msg, sender, respond)
}

type result struct {
	resp models.Response
	err  error
}

type reply struct {
	ch   chan result
	once sync.Once
}

func newReply() *reply {
	return &reply{ch: make(chan result, 1)}
}

func (r *reply) resolve(res result) {
	r.once.Do(func() { r.ch <- res })
}

type envelope struct {
	msg    models.Message
	sender Sender
	reply  *reply
}

type endpoint struct {
	addr    Address
	handler Handler
	inbox   chan envelope
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func (e *endpoint) close() {
	e.once.Do(func() {
		close(e.done)
		e.cancel()
	})
}

// Bus routes messages between registered addresses
type Bus struct {
	mu        sync.RWMutex
	endpoints map[Address]*endpoint
	inboxSize int
	logger    logrus.FieldLogger
	tracer    trace.Tracer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Bus
type Option func(*Bus)

// WithInboxSize bounds how many undelivered messages an address may queue
func WithInboxSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.inboxSize = n
		}
	}
}

// WithLogger sets the bus logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Bus) { b.logger = logger }
}

// New creates an empty bus
func New(opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		endpoints: make(map[Address]*endpoint),
		inboxSize: defaultInboxSize,
		logger:    logrus.StandardLogger(),
		tracer:    otel.Tracer("bidscanner/internal/messaging"),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register starts a loop for addr that feeds messages to h
func (b *Bus) Register(addr Address, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.endpoints[addr]; ok {
		return fmt.Errorf("%s: %w", addr, ErrAlreadyRegistered)
	}
	ctx, cancel := context.WithCancel(b.ctx)
	ep := &endpoint{
		addr:    addr,
		handler: h,
		inbox:   make(chan envelope, b.inboxSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	b.endpoints[addr] = ep
	b.wg.Add(1)
	go b.run(ep)
	b.logger.WithField("address", addr).Debug("Endpoint registered")
	return nil
}

// Unregister tears addr down. Queued and in-flight requests resolve with
// ErrNoReceiver. It is safe to call from addr's own handler.
func (b *Bus) Unregister(addr Address) bool {
	b.mu.Lock()
	ep, ok := b.endpoints[addr]
	if ok {
		delete(b.endpoints, addr)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	ep.close()
	b.logger.WithField("address", addr).Debug("Endpoint unregistered")
	return true
}

// Registered reports whether addr currently has a receiver
func (b *Bus) Registered(addr Address) bool {
	return b.lookup(addr) != nil
}

// Addresses lists registered addresses in sorted order
func (b *Bus) Addresses() []Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	addrs := make([]Address, 0, len(b.endpoints))
	for addr := range b.endpoints {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Close unregisters everything and waits for all loops to exit
func (b *Bus) Close() {
	b.mu.Lock()
	eps := make([]*endpoint, 0, len(b.endpoints))
	for addr, ep := range b.endpoints {
		eps = append(eps, ep)
		delete(b.endpoints, addr)
	}
	b.mu.Unlock()

	for _, ep := range eps {
		ep.close()
	}
	b.cancel()
	b.wg.Wait()
}

func (b *Bus) lookup(addr Address) *endpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.endpoints[addr]
}

// Push delivers msg to one address without waiting for it to be handled
func (b *Bus) Push(ctx context.Context, to Address, from Sender, msg models.Message) error {
	ep := b.lookup(to)
	if ep == nil {
		return ErrNoReceiver
	}
	select {
	case <-ep.done:
		return ErrNoReceiver
	default:
	}
	select {
	case ep.inbox <- envelope{msg: msg, sender: from}:
		return nil
	default:
		b.logger.WithFields(logrus.Fields{"address": to, "type": msg.Type}).Warn("Inbox full, dropping message")
		return ErrDropped
	}
}

// Broadcast pushes msg to every extension page (not tab agents) except the
// sender. It returns how many receivers accepted the message.
func (b *Bus) Broadcast(ctx context.Context, from Sender, msg models.Message) int {
	b.mu.RLock()
	targets := make([]Address, 0, len(b.endpoints))
	for addr := range b.endpoints {
		if addr.IsTab() || addr == from.Address {
			continue
		}
		targets = append(targets, addr)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, addr := range targets {
		if err := b.Push(ctx, addr, from, msg); err == nil {
			delivered++
		}
	}
	return delivered
}

// Request sends msg to one address and waits for its single response
func (b *Bus) Request(ctx context.Context, to Address, from Sender, msg models.Message) (models.Response, error) {
	ctx, span := b.tracer.Start(ctx, "messaging.Request", trace.WithAttributes(
		attribute.String("message.type", string(msg.Type)),
		attribute.String("message.to", string(to)),
	))
	defer span.End()

	ep := b.lookup(to)
	if ep == nil {
		return models.Response{}, ErrNoReceiver
	}

	rep := newReply()
	select {
	case ep.inbox <- envelope{msg: msg, sender: from, reply: rep}:
	case <-ep.done:
		return models.Response{}, ErrNoReceiver
	case <-ctx.Done():
		return models.Response{}, ctx.Err()
	}

	select {
	case res := <-rep.ch:
		return res.resp, res.err
	case <-ep.done:
		select {
		case res := <-rep.ch:
			return res.resp, res.err
		default:
			return models.Response{}, ErrNoReceiver
		}
	case <-ctx.Done():
		return models.Response{}, ctx.Err()
	}
}

func (b *Bus) run(ep *endpoint) {
	defer b.wg.Done()
	for {
		select {
		case <-ep.done:
			b.drain(ep)
			return
		case env := <-ep.inbox:
			b.dispatch(ep, env)
		}
	}
}

func (b *Bus) drain(ep *endpoint) {
	for {
		select {
		case env := <-ep.inbox:
			if env.reply != nil {
				env.reply.resolve(result{err: ErrNoReceiver})
			}
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ep *endpoint, env envelope) {
	respond := func(models.Response) {}
	if env.reply != nil {
		rep := env.reply
		respond = func(resp models.Response) { rep.resolve(result{resp: resp}) }
	}

	keepOpen := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.WithFields(logrus.Fields{
					"address": ep.addr,
					"type":    env.msg.Type,
				}).Errorf("Handler panicked: %v", r)
				keepOpen = false
				respond(models.Fail(models.ErrInternal))
			}
		}()
		keepOpen = ep.handler.HandleMessage(ep.ctx, env.msg, env.sender, respond)
	}()

	if env.reply != nil && !keepOpen {
		env.reply.resolve(result{err: ErrNoResponse})
	}
}
