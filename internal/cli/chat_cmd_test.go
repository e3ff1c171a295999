package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/zeyn/internal/chat"
	"github.com/soyeahso/zeyn/internal/domain"
)

// scriptedChat replays a canned reply for every Send.
type scriptedChat struct {
	mu        sync.Mutex
	snap      chat.Snapshot
	observers []func(chat.Snapshot)
	sent      []string
	sendErr   error
	loadMore  int
	reply     []string
}

func (s *scriptedChat) Snapshot() chat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *scriptedChat) Observe(f func(chat.Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, f)
	return func() {}
}

func (s *scriptedChat) LoadMore(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadMore++
	return nil
}

func (s *scriptedChat) publish(mutate func(*chat.Snapshot)) {
	s.mu.Lock()
	mutate(&s.snap)
	snap := s.snap
	snap.Messages = append([]domain.Message(nil), s.snap.Messages...)
	observers := append([]func(chat.Snapshot){}, s.observers...)
	s.mu.Unlock()
	for _, f := range observers {
		f(snap)
	}
}

func (s *scriptedChat) Send(_ context.Context, text string) error {
	s.mu.Lock()
	s.sent = append(s.sent, text)
	id := "tmp_" + text
	s.mu.Unlock()

	s.publish(func(snap *chat.Snapshot) {
		snap.Messages = append(snap.Messages, domain.Message{ID: id, Role: domain.RoleUser, Content: text, Status: domain.DeliveryPending})
	})
	if s.sendErr != nil {
		s.publish(func(snap *chat.Snapshot) {
			snap.Messages[len(snap.Messages)-1].Status = domain.DeliveryFailed
		})
		return s.sendErr
	}

	var live string
	for _, tok := range s.reply {
		live += tok
		s.publish(func(snap *chat.Snapshot) { snap.Live = live })
	}
	s.publish(func(snap *chat.Snapshot) {
		snap.Live = ""
		snap.Messages = append(snap.Messages, domain.Message{ID: "srv_" + text, Role: domain.RoleAssistant, Content: strings.TrimSpace(live)})
	})
	return nil
}

func TestRunPlainChatStreamsReplies(t *testing.T) {
	s := &scriptedChat{reply: []string{"Hel", "lo ", "there"}}
	s.snap.Messages = []domain.Message{{ID: "m1", Role: domain.RoleAssistant, Content: "Welcome back"}}

	var out bytes.Buffer
	err := runPlainChat(context.Background(), s, strings.NewReader("\nHi\n/more\n/quit\nignored\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi"}, s.sent)
	assert.Equal(t, 1, s.loadMore)
	assert.Equal(t, "Zeyn: Welcome back\nZeyn: Hello there\n", out.String())
}

func TestRunPlainChatStopsAtEOF(t *testing.T) {
	s := &scriptedChat{reply: []string{"ok"}}
	var out bytes.Buffer
	err := runPlainChat(context.Background(), s, strings.NewReader("one\ntwo"), &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, s.sent)
	assert.Equal(t, "Zeyn: ok\nZeyn: ok\n", out.String())
}

func TestRunPlainChatReportsSendFailure(t *testing.T) {
	s := &scriptedChat{sendErr: errors.New("api: POST send: 500")}
	var out bytes.Buffer
	err := runPlainChat(context.Background(), s, strings.NewReader("Hi\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "! not delivered: Hi\n")
	assert.Contains(t, out.String(), "! api: POST send: 500\n")
}

func TestPlainPrinterEndsLineOnGenerationError(t *testing.T) {
	var out bytes.Buffer
	p := newPlainPrinter(&out)

	p.update(chat.Snapshot{Live: "partial"})
	p.update(chat.Snapshot{Live: "partial answer"})
	p.update(chat.Snapshot{})

	assert.Equal(t, "Zeyn: partial answer\n", out.String())
}

func TestPlainPrinterPrintsUnstreamedMessagesOnce(t *testing.T) {
	var out bytes.Buffer
	p := newPlainPrinter(&out)
	snap := chat.Snapshot{Messages: []domain.Message{
		{ID: "a", Role: domain.RoleSystem, Content: "Conversation started"},
		{ID: "b", Role: domain.RoleUser, Content: "typed by the user"},
	}}

	p.update(snap)
	p.update(snap)

	assert.Equal(t, "System: Conversation started\n", out.String())
}
