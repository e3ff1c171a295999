// Package chat drives a single assistant conversation: paged history over
// REST, optimistic sends, and token streaming over the real-time hub.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/soyeahso/zeyn/internal/hub"
	"github.com/soyeahso/zeyn/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Hub events consumed by a session and the method it invokes.
const (
	EventStarted = "started"
	EventToken   = "token"
	EventDone    = "done"
	EventError   = "error"

	MethodJoin = "Join"
)

// Events lists every hub event a session registers a handler for.
var Events = []string{EventStarted, EventToken, EventDone, EventError}

// DefaultPageSize is the history page size when none is configured.
const DefaultPageSize = 50

const joinTimeout = 10 * time.Second

// ErrClosed is returned by operations that need an active conversation.
var ErrClosed = errors.New("chat: no active conversation")

// Hub is the slice of *hub.Connection a session uses.
type Hub interface {
	On(method string, h hub.Handler)
	Off(method string)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error)
	OnReconnected(f func(connectionID string))
	OnClose(f func(err error))
}

// HubFactory returns a new, unstarted Hub. It is called once per conversation.
type HubFactory func() (Hub, error)

// API is the REST surface a session uses.
type API interface {
	GetMessages(ctx context.Context, conversationID string, skip, take int) ([]domain.Message, error)
	SendMessage(ctx context.Context, conversationID, message string) error
}

// State is the connection and generation state of a session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// handlerState records whether the current hub carries our handlers.
type handlerState int

const (
	handlersIdle handlerState = iota
	handlersSubscribed
)

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	ConversationID string
	Messages       []domain.Message
	Offset         int
	HasMore        bool
	Live           string
	Streaming      bool
	State          State
}

// Option configures a Session.
type Option func(*Session)

// WithPageSize sets the history page size. Values <= 0 keep the default.
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator replaces the random suffix of client-side message ids.
func WithIDGenerator(f func() string) Option {
	return func(s *Session) { s.newID = f }
}

// Session is the client side of one streamed assistant conversation.
//
// Hub handlers run on the hub's read goroutine; observers are called on
// whichever goroutine changed the session and must not block.
type Session struct {
	api      API
	newHub   HubFactory
	log      *logging.Logger
	pageSize int
	now      func() time.Time
	newID    func() string

	loads singleflight.Group
	joins sync.WaitGroup

	mu             sync.Mutex
	conversationID string
	epoch          uint64
	messages       []domain.Message
	offset         int
	hasMore        bool
	live           strings.Builder
	streaming      bool
	state          State
	hub            Hub
	handlers       handlerState
	observers      map[int]func(Snapshot)
	nextObserver   int
}

// NewSession returns an idle session. Call Subscribe to open a conversation.
func NewSession(api API, newHub HubFactory, log *logging.Logger, opts ...Option) *Session {
	if log == nil {
		log = logging.Nop()
	}
	s := &Session{
		api:       api,
		newHub:    newHub,
		log:       log,
		pageSize:  DefaultPageSize,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		observers: make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe switches the session to conversationID. On a change it tears
// down the previous connection, resets history, loads the first page and
// connects to the hub. Subscribing to the current conversation is a no-op.
//
// Connection failures are logged and swallowed; the returned error is the
// history load error, if any.
func (s *Session) Subscribe(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("chat: empty conversation id")
	}

	s.mu.Lock()
	if s.conversationID == conversationID {
		s.mu.Unlock()
		return nil
	}
	old, registered := s.detachLocked()
	s.conversationID = conversationID
	s.state = StateConnecting
	epoch := s.epoch
	s.mu.Unlock()

	s.log.Debug().Str("conversation", conversationID).Msg("subscribing")
	s.teardown(ctx, old, registered)
	s.notify()

	loadErr := s.LoadMore(ctx)
	s.connect(ctx, epoch, conversationID)
	return loadErr
}

// Close deregisters the hub handlers, stops the connection and returns the
// session to idle. Stop errors are discarded. Close is safe to call when the
// session never connected and more than once.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	h, registered := s.detachLocked()
	s.conversationID = ""
	s.mu.Unlock()

	s.teardown(ctx, h, registered)
	s.joins.Wait()
	s.notify()
}

// detachLocked invalidates in-flight work, resets conversation state and
// hands back the hub for teardown outside the lock.
func (s *Session) detachLocked() (Hub, bool) {
	h, registered := s.hub, s.handlers == handlersSubscribed
	s.hub = nil
	s.handlers = handlersIdle
	s.epoch++
	s.messages = nil
	s.offset = 0
	s.hasMore = true
	s.live.Reset()
	s.streaming = false
	s.state = StateIdle
	return h, registered
}

func (s *Session) teardown(ctx context.Context, h Hub, registered bool) {
	if h == nil {
		return
	}
	if registered {
		for _, ev := range Events {
			h.Off(ev)
		}
	}
	if err := h.Stop(ctx); err != nil {
		s.log.Debug().Err(err).Msg("stopping hub")
	}
}

func (s *Session) connect(ctx context.Context, epoch uint64, conversationID string) {
	if s.newHub == nil {
		s.setState(epoch, StateIdle)
		return
	}
	h, err := s.newHub()
	if err != nil {
		s.log.Warn().Err(err).Msg("building hub connection")
		s.setState(epoch, StateIdle)
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.hub = h
	if s.handlers == handlersIdle {
		h.On(EventStarted, func(args []json.RawMessage) { s.onStarted(epoch) })
		h.On(EventToken, func(args []json.RawMessage) { s.onToken(epoch, args) })
		h.On(EventDone, func(args []json.RawMessage) { s.onDone(epoch, args) })
		h.On(EventError, func(args []json.RawMessage) { s.onError(epoch, args) })
		h.OnReconnected(func(string) {
			// a generation cut by the drop never finishes
			s.resume(epoch)
			s.joins.Add(1)
			go func() {
				defer s.joins.Done()
				s.join(context.Background(), h, epoch, conversationID)
			}()
		})
		h.OnClose(func(err error) {
			if err != nil {
				s.log.Warn().Err(err).Msg("hub connection closed")
			}
			s.setState(epoch, StateIdle)
		})
		s.handlers = handlersSubscribed
	}
	s.mu.Unlock()

	if err := h.Start(ctx); err != nil {
		s.log.Warn().Err(err).Msg("hub start failed; live updates disabled")
		s.setState(epoch, StateIdle)
		return
	}

	s.mu.Lock()
	if s.epoch == epoch && s.state == StateConnecting {
		s.state = StateConnected
	}
	s.mu.Unlock()
	s.notify()

	s.join(ctx, h, epoch, conversationID)
}

// join announces the conversation to the hub. Failures are only logged.
func (s *Session) join(ctx context.Context, h Hub, epoch uint64, conversationID string) {
	s.mu.Lock()
	current := s.epoch == epoch
	s.mu.Unlock()
	if !current {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	if _, err := h.Invoke(ctx, MethodJoin, conversationID); err != nil {
		s.log.Debug().Err(err).Str("conversation", conversationID).Msg("join failed")
	}
}

func (s *Session) setState(epoch uint64, st State) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.state = st
	if st == StateIdle {
		s.live.Reset()
		s.streaming = false
	}
	s.mu.Unlock()
	s.notify()
}

// resume drops any half-streamed reply after the hub reconnected.
func (s *Session) resume(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.live.Reset()
	s.streaming = false
	s.state = StateConnected
	s.mu.Unlock()
	s.notify()
}

// LoadMore prepends the next older page of history. It does nothing once
// the server returned a short page. Concurrent calls share one request, and
// a page that arrives after the conversation changed is dropped.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	_, err, _ := s.loads.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		return nil, s.loadPage(ctx, epoch)
	})
	return err
}

func (s *Session) loadPage(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	if s.epoch != epoch || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	conversationID, skip := s.conversationID, s.offset
	s.mu.Unlock()

	page, err := s.api.GetMessages(ctx, conversationID, skip, s.pageSize)
	if err != nil {
		return fmt.Errorf("loading messages for %s: %w", conversationID, err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.log.Debug().Str("conversation", conversationID).Int("count", len(page)).Msg("discarding stale history page")
		return nil
	}
	merged := make([]domain.Message, 0, len(page)+len(s.messages))
	merged = append(merged, page...)
	s.messages = append(merged, s.messages...)
	s.offset += len(page)
	s.hasMore = len(page) == s.pageSize
	s.mu.Unlock()

	s.log.Debug().Str("conversation", conversationID).Int("count", len(page)).Int("offset", skip+len(page)).Msg("history page loaded")
	s.notify()
	return nil
}

// Send appends text as a pending user message and posts it. Blank text is
// ignored. A failed post keeps the message, marked failed, and returns the
// error.
func (s *Session) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return ErrClosed
	}
	msg := domain.Message{
		ID:        domain.LocalUserIDPrefix + s.newID(),
		Role:      domain.RoleUser,
		Content:   trimmed,
		CreatedAt: s.now().UTC(),
		Status:    domain.DeliveryPending,
	}
	s.messages = append(s.messages, msg)
	s.live.Reset()
	s.streaming = true
	conversationID, epoch := s.conversationID, s.epoch
	s.mu.Unlock()
	s.notify()

	err := s.api.SendMessage(ctx, conversationID, trimmed)

	status := domain.DeliverySent
	if err != nil {
		status = domain.DeliveryFailed
	}
	s.mu.Lock()
	if s.epoch == epoch {
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].ID == msg.ID {
				s.messages[i].Status = status
				break
			}
		}
		if err != nil {
			s.streaming = false
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (s *Session) onStarted(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.streaming = true
	s.state = StateStreaming
	s.mu.Unlock()
	s.notify()
}

func (s *Session) onToken(epoch uint64, args []json.RawMessage) {
	text := tokenText(args)
	if text == "" {
		return
	}
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.live.WriteString(text)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) onDone(epoch uint64, args []json.RawMessage) {
	id := doneMessageID(args)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	// read the buffer now, not when the event was queued
	text := strings.TrimSpace(s.live.String())
	if text != "" {
		if id == "" {
			id = domain.LocalAssistantIDPrefix + s.newID()
		}
		s.messages = append(s.messages, domain.Message{
			ID:        id,
			Role:      domain.RoleAssistant,
			Content:   text,
			CreatedAt: s.now().UTC(),
		})
	}
	s.live.Reset()
	s.streaming = false
	s.state = StateConnected
	s.mu.Unlock()
	s.notify()
}

func (s *Session) onError(epoch uint64, args []json.RawMessage) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.live.Reset()
	s.streaming = false
	s.state = StateConnected
	s.mu.Unlock()

	ev := s.log.Warn()
	if len(args) > 0 {
		ev = ev.RawJSON("payload", args[0])
	}
	ev.Msg("assistant generation failed")
	s.notify()
}

// tokenText accepts a bare string or an object with a text field.
func tokenText(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[0], &s); err == nil {
		return s
	}
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args[0], &p); err == nil {
		return p.Text
	}
	return ""
}

func doneMessageID(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var p struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(args[0], &p); err != nil {
		return ""
	}
	return p.MessageID
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	msgs := make([]domain.Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ConversationID: s.conversationID,
		Messages:       msgs,
		Offset:         s.offset,
		HasMore:        s.hasMore,
		Live:           s.live.String(),
		Streaming:      s.streaming,
		State:          s.state,
	}
}

// Observe registers f to receive a snapshot after every change. The returned
// func removes it.
func (s *Session) Observe(f func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = f
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	if len(s.observers) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	fs := make([]func(Snapshot), 0, len(s.observers))
	for _, f := range s.observers {
		fs = append(fs, f)
	}
	s.mu.Unlock()
	for _, f := range fs {
		f(snap)
	}
}
