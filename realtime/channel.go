// ABOUTME: Single authenticated push channel with bounded reconnect and typed subscriptions
// ABOUTME: One reader goroutine delivers events to handlers in arrival and registration order

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
)

// TokenSource supplies the current access token; "" means no credential
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Handler receives events for one name. Handlers run on the reader goroutine and
// must not block on or call Channel.Close.
type Handler func(models.Event)

// Subscription is the handle returned by Subscribe
type Subscription struct {
	ch      *Channel
	name    string
	id      uint64
	handler Handler
}

// Name returns the subscribed event name
func (s *Subscription) Name() string {
	return s.name
}

// Unsubscribe removes the handler; calling it again is a no-op
func (s *Subscription) Unsubscribe() {
	if s != nil && s.ch != nil {
		s.ch.Unsubscribe(s)
	}
}

// Option configures a Channel
type Option func(*Channel)

// WithDialer sets the transport used to open connections
func WithDialer(d Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithMaxAttempts caps consecutive failed connection attempts
func WithMaxAttempts(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay and the cap it doubles up to
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Channel) {
		c.initialDelay = initial
		c.maxDelay = max
	}
}

// WithOnUnauthorized registers the hook run when the server refuses the token
func WithOnUnauthorized(fn func(error)) Option {
	return func(c *Channel) { c.onUnauthorized = fn }
}

// Channel owns at most one live connection at a time
type Channel struct {
	tokens         TokenSource
	dialer         Dialer
	maxAttempts    int
	initialDelay   time.Duration
	maxDelay       time.Duration
	onUnauthorized func(error)

	mu        sync.Mutex
	conn      models.ChannelConnection
	run       *run
	subs      map[string][]*Subscription
	nextID    uint64
	listeners []func(models.ChannelConnection)
}

// run is one connect loop; a new Connect supersedes it
type run struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	live Conn
}

func (r *run) setLive(c Conn) {
	r.mu.Lock()
	r.live = c
	r.mu.Unlock()
}

func (r *run) stop() {
	r.cancel()
	r.mu.Lock()
	if r.live != nil {
		r.live.Close()
	}
	r.mu.Unlock()
}

// New creates a disconnected channel reading tokens from tokens
func New(tokens TokenSource, opts ...Option) *Channel {
	c := &Channel{
		tokens:       tokens,
		maxAttempts:  5,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     10 * time.Second,
		conn:         models.ChannelConnection{State: models.ChannelDisconnected},
		subs:         make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxDelay < c.initialDelay {
		c.maxDelay = c.initialDelay
	}
	return c
}

// State returns a copy of the connection state
func (c *Channel) State() models.ChannelConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// OnStateChange registers fn to observe every transition
func (c *Channel) OnStateChange(fn func(models.ChannelConnection)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Subscribe registers handler for events named name
func (c *Channel) Subscribe(name string, handler Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	sub := &Subscription{ch: c, name: name, id: c.nextID, handler: handler}
	c.subs[name] = append(c.subs[name], sub)
	return sub
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are ignored.
func (c *Channel) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.subs[sub.name]
	for i, s := range list {
		if s.id == sub.id {
			// copy so a dispatch in progress keeps its own slice
			next := make([]*Subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(c.subs, sub.name)
			} else {
				c.subs[sub.name] = next
			}
			return
		}
	}
}

// Connect closes any previous connection and starts connecting with the current token.
// Without a token the channel stays disconnected and returns ErrNoCredential.
func (c *Channel) Connect(ctx context.Context) error {
	c.Close()

	if c.tokens == nil || c.tokens.Token() == "" {
		err := models.NewError(models.ErrNoCredential, "no credential available for realtime channel")
		c.transition(nil, models.ChannelConnection{State: models.ChannelDisconnected, LastError: err})
		return err
	}
	if c.dialer == nil {
		err := models.NewError(models.ErrChannelUnavailable, "no realtime endpoint configured")
		c.transition(nil, models.ChannelConnection{State: models.ChannelDisconnected, LastError: err})
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.run = r
	c.mu.Unlock()

	go c.loop(runCtx, r)
	return nil
}

// Close tears down the connection and waits for the reader goroutine to exit.
// The channel ends disconnected. Safe to call when already closed.
func (c *Channel) Close() {
	c.mu.Lock()
	r := c.run
	c.run = nil
	c.mu.Unlock()

	if r == nil {
		return
	}
	r.stop()
	<-r.done

	c.transition(nil, models.ChannelConnection{State: models.ChannelDisconnected})
	slog.Debug("Channel closed")
}

// transition applies next if r is still the active run (nil means unconditional)
func (c *Channel) transition(r *run, next models.ChannelConnection) bool {
	c.mu.Lock()
	if r != nil && c.run != r {
		c.mu.Unlock()
		return false
	}
	c.conn = next
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true
}

// finish settles a run that ended on its own; the run is detached so Close has nothing to wait for
func (c *Channel) finish(r *run, err error) {
	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		return
	}
	c.run = nil
	c.mu.Unlock()
	r.cancel()

	c.transition(nil, models.ChannelConnection{State: models.ChannelDisconnected, LastError: err})
}

func (c *Channel) backoff(attempt int) time.Duration {
	d := c.initialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.maxDelay {
			return c.maxDelay
		}
	}
	return d
}

func (c *Channel) loop(ctx context.Context, r *run) {
	var unauthorized error
	defer func() {
		close(r.done)
		if unauthorized != nil && c.onUnauthorized != nil {
			c.onUnauthorized(unauthorized)
		}
	}()

	attempt := 0
	for {
		token := c.tokens.Token()
		if token == "" {
			c.finish(r, models.NewError(models.ErrNoCredential, "credential cleared"))
			return
		}

		if !c.transition(r, models.ChannelConnection{State: models.ChannelConnecting, RetryCount: attempt}) {
			return
		}

		conn, err := c.dialer.Dial(ctx, token)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return
		}

		if err != nil {
			if authRejected(err) {
				slog.Warn("Channel rejected credential", "error", err)
				unauthorized = models.WrapError(models.ErrUnauthorized, "realtime channel rejected the session", err)
				c.finish(r, unauthorized)
				return
			}

			attempt++
			slog.Warn("Channel connect failed", "attempt", attempt, "max_attempts", c.maxAttempts, "error", err)
			if !c.transition(r, models.ChannelConnection{State: models.ChannelError, LastError: err, RetryCount: attempt}) {
				return
			}
			if attempt >= c.maxAttempts {
				c.finish(r, models.WrapError(models.ErrChannelUnavailable, "realtime channel unavailable after retries", err))
				return
			}
			if !sleep(ctx, c.backoff(attempt)) {
				return
			}
			continue
		}

		r.setLive(conn)
		if ctx.Err() != nil {
			conn.Close()
			return
		}

		attempt = 0
		slog.Info("Channel connected")
		if !c.transition(r, models.ChannelConnection{State: models.ChannelConnected, ConnectedAt: time.Now()}) {
			conn.Close()
			return
		}

		err = c.read(ctx, conn)
		conn.Close()
		r.setLive(nil)
		if ctx.Err() != nil {
			return
		}

		slog.Warn("Channel dropped", "error", err)
		if !c.transition(r, models.ChannelConnection{State: models.ChannelError, LastError: err}) {
			return
		}
		if !sleep(ctx, c.backoff(1)) {
			return
		}
	}
}

// read delivers events until the connection fails
func (c *Channel) read(ctx context.Context, conn Conn) error {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = time.Now()
		}
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev models.Event) {
	c.mu.Lock()
	subs := c.subs[ev.Name]
	c.mu.Unlock()

	for _, s := range subs {
		if !c.subscribed(s) {
			continue
		}
		s.handler(ev)
	}
}

// subscribed reports whether s is still registered; a handler may unsubscribe a later one
func (c *Channel) subscribed(s *Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cur := range c.subs[s.name] {
		if cur.id == s.id {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// IsUnavailable reports whether err means realtime is degraded rather than the session broken
func IsUnavailable(err error) bool {
	return errors.Is(err, models.ErrChannelUnavailable)
}
