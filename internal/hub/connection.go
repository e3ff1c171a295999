package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/zeyn/internal/logging"
)

var (
	ErrNotConnected      = errors.New("hub: connection is not in the Connected state")
	ErrAlreadyStarted    = errors.New("hub: connection is not in the Disconnected state")
	ErrConnectionStopped = errors.New("hub: connection was stopped")
	errServerClosed      = errors.New("hub: server closed the connection")
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateDisconnecting:
		return "Disconnecting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// InvocationError carries the error string of a failed completion.
type InvocationError struct {
	Target  string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("hub: invocation of %s failed: %s", e.Target, e.Message)
}

type completion struct {
	result json.RawMessage
	errMsg string
	lost   error
}

// Connection is a client connection to a hub.
//
// Server invocations are dispatched to handlers on the read goroutine, one at
// a time and in arrival order. Handlers must not block on the Connection.
type Connection struct {
	url               string
	tokenFactory      AccessTokenFactory
	retry             RetryPolicy
	skipNegotiation   bool
	httpClient        *http.Client
	dialer            *websocket.Dialer
	keepAliveInterval time.Duration
	serverTimeout     time.Duration
	handshakeTimeout  time.Duration
	log               *logging.Logger
	handlers          *handlerRegistry

	mu             sync.Mutex
	state          State
	transport      *transport
	cancel         context.CancelFunc
	done           chan struct{}
	pending        map[string]chan completion
	onReconnecting []func(error)
	onReconnected  []func(connectionID string)
	onClose        []func(error)
}

// On registers a handler for a server-to-client method.
func (c *Connection) On(method string, h Handler) { c.handlers.on(method, h) }

// Off removes every handler registered for method.
func (c *Connection) Off(method string) { c.handlers.off(method) }

// HandlerCount reports how many handlers are registered for method.
func (c *Connection) HandlerCount(method string) int { return c.handlers.count(method) }

// OnReconnecting registers a callback run when a lost connection starts
// reconnecting.
func (c *Connection) OnReconnecting(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnecting = append(c.onReconnecting, f)
}

// OnReconnected registers a callback run after a successful reconnect.
// Callbacks run before reading resumes, so one that needs a round trip
// (such as Invoke) must hand off to its own goroutine.
func (c *Connection) OnReconnected(f func(connectionID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnected = append(c.onReconnected, f)
}

// OnClose registers a callback run when the connection ends for good.
// The error is nil after Stop.
func (c *Connection) OnClose(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, f)
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID returns the id assigned by negotiate, empty when disconnected
// or when negotiation was skipped.
func (c *Connection) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ""
	}
	return c.transport.connectionID
}

// Start connects and completes the handshake. It returns once the connection
// is usable or the first attempt failed; reconnect only applies afterwards.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateConnecting
	life, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	connectCtx, stopConnect := context.WithCancel(ctx)
	defer stopConnect()
	unwatch := context.AfterFunc(life, stopConnect)
	defer unwatch()

	t, err := c.connect(connectCtx)

	c.mu.Lock()
	if err == nil && life.Err() != nil {
		_ = t.close()
		err = ErrConnectionStopped
	}
	if err != nil {
		c.state = StateDisconnected
		c.cancel = nil
		c.mu.Unlock()
		stopped := life.Err() != nil
		cancel()
		if stopped {
			return ErrConnectionStopped
		}
		c.log.Warn().Err(err).Msg("hub connection failed")
		return err
	}
	done := make(chan struct{})
	c.transport = t
	c.state = StateConnected
	c.done = done
	c.mu.Unlock()

	c.log.Info().Str("connectionId", t.connectionID).Msg("hub connected")
	go c.run(life, t, done)
	return nil
}

// Stop closes the connection and waits for its goroutines to exit.
// It never triggers a reconnect and is a no-op when not started.
func (c *Connection) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnecting
	cancel, t, done := c.cancel, c.transport, c.done
	c.mu.Unlock()

	cancel()
	if t != nil {
		_ = t.close()
	}
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invoke calls a hub method and waits for its completion.
func (c *Connection) Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error) {
	id := uuid.New().String()
	msg, err := NewInvocation(id, target, args...)
	if err != nil {
		return nil, err
	}

	ch := make(chan completion, 1)
	c.mu.Lock()
	t := c.transport
	if c.state != StateConnected || t == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := t.write(msg); err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("hub: invoking %s: %w", target, err)
	}

	select {
	case res := <-ch:
		if res.lost != nil {
			return nil, fmt.Errorf("hub: invoking %s: %w", target, res.lost)
		}
		if res.errMsg != "" {
			return nil, &InvocationError{Target: target, Message: res.errMsg}
		}
		return res.result, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	}
}

// Send calls a hub method without waiting for a result.
func (c *Connection) Send(ctx context.Context, target string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := NewInvocation("", target, args...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	t := c.transport
	connected := c.state == StateConnected && t != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	if err := t.write(msg); err != nil {
		return fmt.Errorf("hub: sending %s: %w", target, err)
	}
	return nil
}

func (c *Connection) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failPending resolves every outstanding invocation with err.
func (c *Connection) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- completion{lost: err}
		delete(c.pending, id)
	}
}

func (c *Connection) complete(m Message) {
	c.mu.Lock()
	ch, ok := c.pending[m.InvocationID]
	delete(c.pending, m.InvocationID)
	c.mu.Unlock()
	if !ok {
		c.log.Debug().Str("invocationId", m.InvocationID).Msg("completion for unknown invocation")
		return
	}
	ch <- completion{result: m.Result, errMsg: m.Error}
}

// connect performs one full attempt: token, negotiate, dial, handshake.
func (c *Connection) connect(ctx context.Context) (*transport, error) {
	token := ""
	if c.tokenFactory != nil {
		tok, err := c.tokenFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("hub: access token: %w", err)
		}
		token = tok
	}

	hubURL := c.url
	var connectionID, connectionToken string
	if !c.skipNegotiation {
		u, tok, resp, err := c.negotiate(ctx, hubURL, token)
		if err != nil {
			return nil, err
		}
		hubURL, token = u, tok
		connectionID = resp.ConnectionID
		connectionToken = resp.ConnectionToken
		if resp.NegotiateVersion == 0 {
			connectionToken = resp.ConnectionID
		}
	}

	wsURL, err := websocketURL(hubURL, connectionToken)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	socket, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("hub: dialing %s: %w", c.url, err)
	}

	t := &transport{connectionID: connectionID, socket: socket}
	abort := context.AfterFunc(ctx, func() { _ = socket.Close() })
	err = t.handshake(c.handshakeTimeout)
	if !abort() {
		_ = t.close()
		return nil, ctx.Err()
	}
	if err != nil {
		_ = t.close()
		return nil, err
	}
	if err := socket.SetReadDeadline(time.Time{}); err != nil {
		_ = t.close()
		return nil, err
	}
	return t, nil
}

// run owns the connection after Start until it is stopped or gives up.
func (c *Connection) run(life context.Context, t *transport, done chan struct{}) {
	defer close(done)
	for {
		allowReconnect, err := c.serve(t)
		_ = t.close()

		if life.Err() != nil {
			c.failPending(ErrConnectionStopped)
			c.finish(nil)
			return
		}
		c.failPending(err)
		c.log.Warn().Err(err).Msg("hub connection lost")

		if c.retry == nil || !allowReconnect {
			c.finish(err)
			return
		}
		next, rerr := c.reconnect(life, err)
		if next == nil {
			if life.Err() != nil {
				rerr = nil
			}
			c.finish(rerr)
			return
		}
		t = next
	}
}

// serve reads until the transport fails or the server sends Close.
func (c *Connection) serve(t *transport) (allowReconnect bool, err error) {
	stopPing := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.keepAlive(t, stopPing)
	}()
	defer func() {
		close(stopPing)
		wg.Wait()
	}()

	backlog := t.backlog
	t.backlog = nil
	for _, r := range backlog {
		if stop, allow, err := c.handleRecord(t, r); stop {
			return allow, err
		}
	}

	for {
		records, err := t.readFrame(c.serverTimeout)
		if err != nil {
			return true, err
		}
		for _, r := range records {
			if stop, allow, err := c.handleRecord(t, r); stop {
				return allow, err
			}
		}
	}
}

func (c *Connection) handleRecord(t *transport, record []byte) (stop, allowReconnect bool, err error) {
	m, err := parseMessage(record)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed hub message")
		return false, false, nil
	}
	switch m.Type {
	case TypeInvocation:
		c.handlers.dispatch(m.Target, m.Arguments)
		if m.InvocationID != "" {
			reply, _ := NewCompletion(m.InvocationID, nil, "client does not return results")
			if werr := t.write(reply); werr != nil {
				c.log.Debug().Err(werr).Msg("replying to server invocation")
			}
		}
	case TypeCompletion:
		c.complete(m)
	case TypePing:
	case TypeClose:
		if m.Error != "" {
			return true, m.AllowReconnect, fmt.Errorf("%w: %s", errServerClosed, m.Error)
		}
		return true, m.AllowReconnect, errServerClosed
	default:
		c.log.Debug().Int("type", m.Type).Msg("ignoring unsupported hub message")
	}
	return false, false, nil
}

func (c *Connection) keepAlive(t *transport, stop <-chan struct{}) {
	if c.keepAliveInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := t.write(PingMessage); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// reconnect retries per policy. It returns nil and the last error when the
// policy gives up or the connection is stopped.
func (c *Connection) reconnect(life context.Context, reason error) (*transport, error) {
	c.mu.Lock()
	c.state = StateReconnecting
	c.transport = nil
	callbacks := append([]func(error){}, c.onReconnecting...)
	c.mu.Unlock()

	c.log.Info().Err(reason).Msg("hub reconnecting")
	for _, f := range callbacks {
		f(reason)
	}

	start := time.Now()
	for attempt := 0; ; attempt++ {
		delay, ok := c.retry.NextRetryDelay(RetryContext{
			PreviousRetryCount: attempt,
			ElapsedTime:        time.Since(start),
			RetryReason:        reason,
		})
		if !ok {
			c.log.Warn().Int("attempts", attempt).Msg("hub reconnect gave up")
			return nil, reason
		}

		timer := time.NewTimer(delay)
		select {
		case <-life.Done():
			timer.Stop()
			return nil, ErrConnectionStopped
		case <-timer.C:
		}

		t, err := c.connect(life)
		if err != nil {
			if life.Err() != nil {
				return nil, ErrConnectionStopped
			}
			c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("hub reconnect attempt failed")
			reason = err
			continue
		}

		c.mu.Lock()
		if life.Err() != nil {
			c.mu.Unlock()
			_ = t.close()
			return nil, ErrConnectionStopped
		}
		c.transport = t
		c.state = StateConnected
		reconnected := append([]func(string){}, c.onReconnected...)
		c.mu.Unlock()

		c.log.Info().Str("connectionId", t.connectionID).Int("attempt", attempt+1).Msg("hub reconnected")
		for _, f := range reconnected {
			f(t.connectionID)
		}
		return t, nil
	}
}

func (c *Connection) finish(err error) {
	c.mu.Lock()
	c.state = StateDisconnected
	c.transport = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.done = nil
	callbacks := append([]func(error){}, c.onClose...)
	c.mu.Unlock()

	if err != nil {
		c.log.Info().Err(err).Msg("hub connection closed")
	} else {
		c.log.Info().Msg("hub connection closed")
	}
	for _, f := range callbacks {
		f(err)
	}
}
