package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestSubscribe_LoadsHistoryAndConnects(t *testing.T) {
	api := newFakeAPI()
	api.history["c1"] = serverMessages(3)
	hs := &hubs{}
	s := newTestSession(api, hs)

	require.NoError(t, s.Subscribe(ctx, "c1"))

	snap := s.Snapshot()
	if diff := cmp.Diff(serverMessages(3), snap.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "c1", snap.ConversationID)
	assert.Equal(t, 3, snap.Offset)
	assert.False(t, snap.HasMore)
	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, []pageCall{{"c1", 0, DefaultPageSize}}, api.pageCalls())

	require.Equal(t, 1, hs.count())
	h := hs.get(0)
	for _, ev := range Events {
		assert.Equal(t, 1, h.handlerCount(ev), ev)
	}
	assert.Equal(t, 1, h.starts)
	assert.Equal(t, []string{"Join c1"}, h.invoked())
}

func TestSubscribe_SameConversationIsNoop(t *testing.T) {
	api := newFakeAPI()
	hs := &hubs{}
	s := newTestSession(api, hs)

	require.NoError(t, s.Subscribe(ctx, "c1"))
	require.NoError(t, s.Subscribe(ctx, "c1"))

	assert.Len(t, api.pageCalls(), 1)
	assert.Equal(t, 1, hs.count())
}

func TestSubscribe_EmptyID(t *testing.T) {
	s := newTestSession(newFakeAPI(), &hubs{})
	assert.Error(t, s.Subscribe(ctx, ""))
}

func TestStreaming_EndToEnd(t *testing.T) {
	api := newFakeAPI()
	hs := &hubs{}
	s := newTestSession(api, hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	require.NoError(t, s.Send(ctx, "Hi"))
	h.emit(EventStarted)
	assert.Equal(t, StateStreaming, s.Snapshot().State)

	h.emit(EventToken, "Hel")
	h.emit(EventToken, "lo ")
	h.emit(EventToken, "there")
	assert.Equal(t, "Hello there", s.Snapshot().Live)

	h.emit(EventDone)

	snap := s.Snapshot()
	want := []domain.Message{
		{ID: "tmp_id1", Role: domain.RoleUser, Content: "Hi", CreatedAt: testNow, Status: domain.DeliverySent},
		{ID: "srv_id2", Role: domain.RoleAssistant, Content: "Hello there", CreatedAt: testNow},
	}
	if diff := cmp.Diff(want, snap.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, snap.Live)
	assert.False(t, snap.Streaming)
	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, []string{"Hi"}, api.sentMessages())
}

func TestDone_UsesMessageIDAndObjectTokens(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	h.emit(EventStarted)
	h.emit(EventToken, map[string]string{"text": "  Sleep "})
	h.emit(EventToken, map[string]string{"text": "routines help.\n"})
	h.emit(EventDone, map[string]string{"messageId": "msg-42"})

	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-42", msgs[0].ID)
	assert.Equal(t, "Sleep routines help.", msgs[0].Content)
	assert.False(t, msgs[0].IsLocal())
}

func TestDone_BlankBufferAppendsNothing(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	h.emit(EventStarted)
	h.emit(EventToken, "  ")
	h.emit(EventToken, "\n\t")
	h.emit(EventDone, map[string]string{"messageId": "msg-1"})

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Live)
	assert.False(t, snap.Streaming)
}

func TestToken_IgnoresEmptyAndUnknownPayloads(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	var mu sync.Mutex
	notified := 0
	s.Observe(func(Snapshot) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	h.emit(EventToken, "")
	h.emit(EventToken, map[string]int{"count": 3})
	h.emit(EventToken, 12)
	h.emit(EventToken)

	assert.Empty(t, s.Snapshot().Live)
	mu.Lock()
	assert.Zero(t, notified)
	mu.Unlock()
}

func TestError_ClearsBufferWithoutMessage(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	h.emit(EventStarted)
	h.emit(EventToken, "partial answer")
	h.emit(EventError, map[string]string{"reason": "model overloaded"})

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Live)
	assert.False(t, snap.Streaming)
	assert.Equal(t, StateConnected, snap.State)

	// a later done has nothing to finalize
	h.emit(EventDone)
	assert.Empty(t, s.Snapshot().Messages)
}

func TestLoadMore_NoMoreIsNoop(t *testing.T) {
	api := newFakeAPI()
	api.history["c1"] = serverMessages(10)
	s := newTestSession(api, &hubs{})
	require.NoError(t, s.Subscribe(ctx, "c1"))

	before := s.Snapshot()
	require.False(t, before.HasMore)

	require.NoError(t, s.LoadMore(ctx))

	assert.Len(t, api.pageCalls(), 1)
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("snapshot changed (-before +after):\n%s", diff)
	}
}

func TestLoadMore_FullPageKeepsHasMore(t *testing.T) {
	api := newFakeAPI()
	api.history["c1"] = serverMessages(8)
	s := newTestSession(api, &hubs{}, WithPageSize(4))
	require.NoError(t, s.Subscribe(ctx, "c1"))

	snap := s.Snapshot()
	assert.True(t, snap.HasMore)
	assert.Equal(t, 4, snap.Offset)

	require.NoError(t, s.LoadMore(ctx))
	snap = s.Snapshot()
	assert.True(t, snap.HasMore)
	assert.Equal(t, 8, snap.Offset)

	// the next page is empty, which is short
	require.NoError(t, s.LoadMore(ctx))
	snap = s.Snapshot()
	assert.False(t, snap.HasMore)
	assert.Equal(t, 8, snap.Offset)

	assert.Equal(t, []pageCall{{"c1", 0, 4}, {"c1", 4, 4}, {"c1", 8, 4}}, api.pageCalls())
}

func TestLoadMore_PagesThroughHistory(t *testing.T) {
	api := newFakeAPI()
	all := serverMessages(120)
	api.history["c1"] = all
	s := newTestSession(api, &hubs{})

	require.NoError(t, s.Subscribe(ctx, "c1"))
	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadMore(ctx))

	assert.Equal(t, []pageCall{{"c1", 0, 50}, {"c1", 50, 50}, {"c1", 100, 50}}, api.pageCalls())
	snap := s.Snapshot()
	assert.False(t, snap.HasMore)
	assert.Equal(t, 120, snap.Offset)
	if diff := cmp.Diff(all, snap.Messages); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMore_ErrorPropagates(t *testing.T) {
	api := newFakeAPI()
	api.getErr = errBoom
	s := newTestSession(api, &hubs{})

	err := s.Subscribe(ctx, "c1")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateConnected, s.Snapshot().State)

	assert.ErrorIs(t, s.LoadMore(ctx), errBoom)
	assert.True(t, s.Snapshot().HasMore)
}

func TestLoadMore_WithoutConversation(t *testing.T) {
	s := newTestSession(newFakeAPI(), &hubs{})
	assert.ErrorIs(t, s.LoadMore(ctx), ErrClosed)
}

func TestLoadMore_ResultAfterCloseIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.history["c1"] = serverMessages(100)
	s := newTestSession(api, &hubs{})
	require.NoError(t, s.Subscribe(ctx, "c1"))

	api.mu.Lock()
	api.entered = make(chan struct{})
	api.release = make(chan struct{})
	api.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- s.LoadMore(ctx) }()
	<-api.entered

	s.Close(ctx)
	close(api.release)

	require.NoError(t, <-errc)
	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Zero(t, snap.Offset)
	assert.Equal(t, StateIdle, snap.State)
}

func TestLoadMore_ConcurrentCallsShareOneFetch(t *testing.T) {
	api := newFakeAPI()
	api.history["c1"] = serverMessages(200)
	s := newTestSession(api, &hubs{})
	require.NoError(t, s.Subscribe(ctx, "c1"))

	api.mu.Lock()
	api.entered = make(chan struct{}, 2)
	api.release = make(chan struct{})
	api.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = s.LoadMore(ctx)
	}()
	<-api.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = s.LoadMore(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	close(api.release)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Len(t, api.pageCalls(), 2)
	assert.Equal(t, 100, s.Snapshot().Offset)
}

func TestSend_BlankIsNoop(t *testing.T) {
	api := newFakeAPI()
	s := newTestSession(api, &hubs{})
	require.NoError(t, s.Subscribe(ctx, "c1"))
	before := s.Snapshot()

	require.NoError(t, s.Send(ctx, ""))
	require.NoError(t, s.Send(ctx, "   \n"))

	assert.Empty(t, api.sentMessages())
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("snapshot changed (-before +after):\n%s", diff)
	}
}

func TestSend_AppendsBeforeDispatch(t *testing.T) {
	api := newFakeAPI()
	s := newTestSession(api, &hubs{})
	require.NoError(t, s.Subscribe(ctx, "c1"))

	var during Snapshot
	api.onSend = func() { during = s.Snapshot() }

	require.NoError(t, s.Send(ctx, "  hello  "))

	require.Len(t, during.Messages, 1)
	assert.Equal(t, "hello", during.Messages[0].Content)
	assert.Equal(t, domain.RoleUser, during.Messages[0].Role)
	assert.Equal(t, domain.DeliveryPending, during.Messages[0].Status)
	assert.Equal(t, "tmp_id1", during.Messages[0].ID)
	assert.True(t, during.Streaming)
	assert.Empty(t, during.Live)

	after := s.Snapshot()
	require.Len(t, after.Messages, 1)
	assert.Equal(t, domain.DeliverySent, after.Messages[0].Status)
	assert.Equal(t, []string{"hello"}, api.sentMessages())
}

func TestSend_ClearsStaleLiveBuffer(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))

	hs.get(0).emit(EventToken, "leftover")
	require.NoError(t, s.Send(ctx, "next question"))
	assert.Empty(t, s.Snapshot().Live)
}

func TestSend_FailureKeepsMessage(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errBoom
	s := newTestSession(api, &hubs{})
	require.NoError(t, s.Subscribe(ctx, "c1"))

	err := s.Send(ctx, "hello")
	require.ErrorIs(t, err, errBoom)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.Equal(t, domain.DeliveryFailed, snap.Messages[0].Status)
	assert.False(t, snap.Streaming)
}

func TestSend_WithoutConversation(t *testing.T) {
	s := newTestSession(newFakeAPI(), &hubs{})
	assert.ErrorIs(t, s.Send(ctx, "hello"), ErrClosed)
}

func TestSubscribe_ConversationChangeResets(t *testing.T) {
	api := newFakeAPI()
	api.history["a"] = serverMessages(60)
	api.history["b"] = serverMessages(2)
	hs := &hubs{}
	s := newTestSession(api, hs)

	require.NoError(t, s.Subscribe(ctx, "a"))
	first := hs.get(0)
	first.emit(EventStarted)
	first.emit(EventToken, "half an answer")

	require.NoError(t, s.Subscribe(ctx, "b"))

	for _, ev := range Events {
		assert.Equal(t, 1, first.offCalls[ev], ev)
	}
	assert.Equal(t, 1, first.stops)

	snap := s.Snapshot()
	assert.Equal(t, "b", snap.ConversationID)
	assert.Empty(t, snap.Live)
	assert.False(t, snap.Streaming)
	assert.Equal(t, 2, snap.Offset)
	if diff := cmp.Diff(serverMessages(2), snap.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	var bCalls int
	for _, c := range api.pageCalls() {
		if c.ConversationID == "b" {
			bCalls++
			assert.Zero(t, c.Skip)
		}
	}
	assert.Equal(t, 1, bCalls)
	require.Equal(t, 2, hs.count())
	assert.Equal(t, []string{"Join b"}, hs.get(1).invoked())
}

func TestEventsFromPreviousConversationAreIgnored(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "a"))

	old := hs.get(0)
	old.mu.Lock()
	staleToken := old.handlers[EventToken][0]
	staleDone := old.handlers[EventDone][0]
	old.mu.Unlock()

	require.NoError(t, s.Subscribe(ctx, "b"))

	staleToken(nil)
	staleToken([]json.RawMessage{json.RawMessage(`"late"`)})
	staleDone(nil)

	snap := s.Snapshot()
	assert.Empty(t, snap.Live)
	assert.Empty(t, snap.Messages)
}

func TestClose_DeregistersHandlersOnce(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))

	s.Close(ctx)
	s.Close(ctx)

	h := hs.get(0)
	for _, ev := range Events {
		assert.Equal(t, 1, h.offCalls[ev], ev)
		assert.Zero(t, h.handlerCount(ev), ev)
	}
	assert.Equal(t, 1, h.stops)

	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.ConversationID)
}

func TestClose_NeverStarted(t *testing.T) {
	s := newTestSession(newFakeAPI(), &hubs{})
	assert.NotPanics(t, func() { s.Close(ctx) })
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestClose_AfterFailedStart(t *testing.T) {
	hs := &hubs{setup: func(f *fakeHub) { f.startErr = errBoom }}
	s := newTestSession(newFakeAPI(), hs)

	require.NoError(t, s.Subscribe(ctx, "c1"))
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, hs.get(0).invoked())

	s.Close(ctx)
	h := hs.get(0)
	for _, ev := range Events {
		assert.Equal(t, 1, h.offCalls[ev], ev)
	}
}

func TestSubscribe_HubFactoryErrorIsSwallowed(t *testing.T) {
	api := newFakeAPI()
	api.history["c1"] = serverMessages(1)
	s := newTestSession(api, &hubs{err: errBoom})

	require.NoError(t, s.Subscribe(ctx, "c1"))
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Len(t, snap.Messages, 1)
	assert.NotPanics(t, func() { s.Close(ctx) })
}

func TestSubscribe_JoinFailureIsSwallowed(t *testing.T) {
	hs := &hubs{setup: func(f *fakeHub) { f.invokeErr = errBoom }}
	s := newTestSession(newFakeAPI(), hs)

	require.NoError(t, s.Subscribe(ctx, "c1"))
	assert.Equal(t, StateConnected, s.Snapshot().State)
	assert.Equal(t, []string{"Join c1"}, hs.get(0).invoked())
}

func TestReconnect_RejoinsConversation(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))

	h := hs.get(0)
	h.reconnect()

	require.Eventually(t, func() bool { return len(h.invoked()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Join c1", "Join c1"}, h.invoked())
	s.Close(ctx)
}

func TestReconnect_DropsInterruptedGeneration(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	h.emit(EventStarted)
	h.emit(EventToken, "partial")
	require.Equal(t, StateStreaming, s.Snapshot().State)

	h.reconnect()

	snap := s.Snapshot()
	assert.Equal(t, StateConnected, snap.State)
	assert.False(t, snap.Streaming)
	assert.Empty(t, snap.Live)
	assert.Empty(t, snap.Messages)

	// the old generation's done event finds nothing to finalize
	h.emit(EventDone)
	assert.Empty(t, s.Snapshot().Messages)
	s.Close(ctx)
}

func TestHubGivesUp_SessionGoesIdle(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)

	h.emit(EventStarted)
	h.emit(EventToken, "partial")
	h.giveUp(errBoom)

	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Streaming)
	assert.Empty(t, snap.Live)
	assert.Equal(t, "c1", snap.ConversationID)
}

func TestCloseCallbackAfterClose_IsIgnored(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))
	h := hs.get(0)
	s.Close(ctx)

	require.NoError(t, s.Subscribe(ctx, "c2"))
	h.giveUp(nil)

	assert.Equal(t, StateConnected, s.Snapshot().State)
}

func TestObserve(t *testing.T) {
	hs := &hubs{}
	s := newTestSession(newFakeAPI(), hs)
	require.NoError(t, s.Subscribe(ctx, "c1"))

	var mu sync.Mutex
	var lives []string
	cancel := s.Observe(func(snap Snapshot) {
		mu.Lock()
		lives = append(lives, snap.Live)
		mu.Unlock()
	})

	h := hs.get(0)
	h.emit(EventToken, "a")
	h.emit(EventToken, "b")
	cancel()
	h.emit(EventToken, "c")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "ab"}, lives)
}

func TestTokenText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"Hel"`, "Hel"},
		{"object", `{"text":"lo "}`, "lo "},
		{"object without text", `{"other":1}`, ""},
		{"number", `3`, ""},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenText([]json.RawMessage{json.RawMessage(tt.raw)}))
		})
	}
	assert.Empty(t, tokenText(nil))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "state(9)", State(9).String())
}
