package internal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedStreamer plays back a fixed event sequence, optionally pausing
// after the first event until the context is cancelled.
type scriptedStreamer struct {
	mu       sync.Mutex
	events   []StreamEvent
	err      error
	blocked  bool
	requests []ChatRequest
}

func (s *scriptedStreamer) StreamChat(ctx context.Context, req ChatRequest, handler func(StreamEvent) error) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	events := s.events
	blocked := s.blocked
	s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	for i, event := range events {
		if err := handler(event); err != nil {
			return err
		}
		if i == 0 && blocked {
			<-ctx.Done()
			return ctx.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *scriptedStreamer) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func event(t *testing.T, eventType, payload string) StreamEvent {
	t.Helper()
	ev := StreamEvent{Type: eventType}
	if payload != "" {
		ev.Data = json.RawMessage(payload)
	}
	return ev
}

func replyScript(t *testing.T, deltas []string, final string) []StreamEvent {
	t.Helper()
	events := []StreamEvent{event(t, EventStart, "")}
	for _, delta := range deltas {
		data, _ := json.Marshal(DeltaData{Text: delta})
		events = append(events, StreamEvent{Type: EventDelta, Data: data})
	}
	data, _ := json.Marshal(DoneData{Content: final})
	events = append(events, StreamEvent{Type: EventDone, Data: data})
	return events
}

func newTestController(t *testing.T, streamer *scriptedStreamer) (*Controller, *SessionStore) {
	t.Helper()
	store, _ := newTestStore(t, "user-1")
	controller := NewController(streamer, store)
	controller.SetEnabled(true)
	return controller, store
}

func waitForStreaming(t *testing.T, controller *Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if controller.Streaming() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("stream never started")
}

func TestSendAccumulatesDeltas(t *testing.T) {
	streamer := &scriptedStreamer{events: replyScript(t, []string{"Hel", "lo ", "there."}, "Hello there.")}
	controller, store := newTestController(t, streamer)

	var streamed strings.Builder
	controller.OnDelta(func(text string) {
		streamed.WriteString(text)
	})

	if err := controller.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Streamed content is the concatenation of deltas in arrival order
	if streamed.String() != "Hello there." {
		t.Errorf("streamed = %q, want %q", streamed.String(), "Hello there.")
	}

	messages := controller.Messages()
	if len(messages) != 2 {
		t.Fatalf("message count = %d, want 2 (user + assistant)", len(messages))
	}
	last := messages[1]
	if last.Content != "Hello there." {
		t.Errorf("final content = %q, want authoritative done text", last.Content)
	}
	if last.Status != StatusDone {
		t.Errorf("final status = %q, want done", last.Status)
	}

	// The done event committed the session
	sessions := store.Sessions()
	if len(sessions) != 1 || len(sessions[0].Messages) != 2 {
		t.Errorf("persisted sessions = %+v, want one session with 2 messages", sessions)
	}
}

func TestSendGlobalScenario(t *testing.T) {
	streamer := &scriptedStreamer{events: replyScript(t, nil, "Here is a quick summary.")}
	controller, store := newTestController(t, streamer)

	if err := controller.Send(context.Background(), "Summarize this workflow"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	requests := streamer.Requests()
	if len(requests) != 1 {
		t.Fatalf("request count = %d, want 1", len(requests))
	}
	req := requests[0]
	if req.Message != "Summarize this workflow" {
		t.Errorf("Message = %q, want the user input", req.Message)
	}
	if req.SurrogateID != "" || req.ConversationID != "" {
		t.Errorf("global request must carry no entity fields, got %+v", req)
	}

	messages := controller.Messages()
	if got := messages[len(messages)-1]; got.Content != "Here is a quick summary." || got.Status != StatusDone {
		t.Errorf("assistant message = %+v, want done summary", got)
	}

	session := store.Sessions()[0]
	if session.EntityType != EntityGlobal {
		t.Errorf("EntityType = %q, want global", session.EntityType)
	}
}

func TestSendIncludesConversationID(t *testing.T) {
	streamer := &scriptedStreamer{events: replyScript(t, nil, "Continuing.")}
	controller, store := newTestController(t, streamer)

	session := CreateTestChatSessionWithMessages("stored", GlobalContext(), CreateTestMessages(2))
	session.ConversationID = "conv-previous"
	_ = store.Upsert(*session)
	store.SetActive("stored")
	controller.SetConversation(GlobalContext(), "stored", session.Messages)

	if err := controller.Send(context.Background(), "follow-up"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	req := streamer.Requests()[0]
	if req.ConversationID != "conv-previous" {
		t.Errorf("ConversationID = %q, want conv-previous", req.ConversationID)
	}
}

func TestSendSurrogateContext(t *testing.T) {
	streamer := &scriptedStreamer{events: replyScript(t, nil, "Case update.")}
	controller, _ := newTestController(t, streamer)
	controller.SetConversation(SurrogateContext("s-7", "Jane"), "", nil)

	if err := controller.Send(context.Background(), "status?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	req := streamer.Requests()[0]
	if req.SurrogateID != "s-7" {
		t.Errorf("SurrogateID = %q, want s-7", req.SurrogateID)
	}
}

func TestSendDisabledIsNoOp(t *testing.T) {
	streamer := &scriptedStreamer{events: replyScript(t, nil, "never")}
	controller, _ := newTestController(t, streamer)
	controller.SetEnabled(false)

	err := controller.Send(context.Background(), "hello")
	if !errors.Is(err, ErrAssistantDisabled) {
		t.Fatalf("Send() error = %v, want ErrAssistantDisabled", err)
	}
	if len(controller.Messages()) != 0 {
		t.Error("disabled send must not append messages")
	}
	if len(streamer.Requests()) != 0 {
		t.Error("disabled send must not issue a request")
	}
}

func TestSendEmptyIsNoOp(t *testing.T) {
	streamer := &scriptedStreamer{}
	controller, _ := newTestController(t, streamer)

	err := controller.Send(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Send() error = %v, want ErrEmptyMessage", err)
	}
	if len(streamer.Requests()) != 0 {
		t.Error("blank send must not issue a request")
	}
}

func TestSendWhileStreamingIsNoOp(t *testing.T) {
	streamer := &scriptedStreamer{events: replyScript(t, []string{"partial"}, "full"), blocked: true}
	controller, _ := newTestController(t, streamer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = controller.Send(context.Background(), "first")
	}()
	waitForStreaming(t, controller)

	before := len(controller.Messages())
	err := controller.Send(context.Background(), "second")
	if !errors.Is(err, ErrStreamActive) {
		t.Fatalf("Send() error = %v, want ErrStreamActive", err)
	}
	if len(controller.Messages()) != before {
		t.Error("send during stream must not append messages")
	}
	if len(streamer.Requests()) != 1 {
		t.Error("send during stream must not issue a request")
	}

	controller.Stop()
	<-done
}

func TestStopBeforeAnyDelta(t *testing.T) {
	streamer := &scriptedStreamer{events: []StreamEvent{event(t, EventStart, "")}, blocked: true}
	controller, store := newTestController(t, streamer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = controller.Send(context.Background(), "hello")
	}()
	waitForStreaming(t, controller)
	controller.Stop()
	<-done

	messages := controller.Messages()
	last := messages[len(messages)-1]
	if last.Content != StoppedText {
		t.Errorf("content = %q, want %q", last.Content, StoppedText)
	}
	if last.Status != StatusDone {
		t.Errorf("status = %q, want done", last.Status)
	}

	// A user stop is a terminal state and is persisted
	if len(store.Sessions()) != 1 {
		t.Error("stopped reply should still commit the session")
	}
}

func TestStopKeepsPartialContent(t *testing.T) {
	// Block after the delta so the stop arrives mid-stream
	streamer := &scriptedStreamer{events: []StreamEvent{event(t, EventDelta, `{"text":"partial answer"}`)}, blocked: true}
	controller, _ := newTestController(t, streamer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = controller.Send(context.Background(), "hello")
	}()
	waitForStreaming(t, controller)
	controller.Stop()
	<-done

	messages := controller.Messages()
	last := messages[len(messages)-1]
	if last.Content != "partial answer" {
		t.Errorf("content = %q, want the partial text", last.Content)
	}
	if last.Status != StatusDone {
		t.Errorf("status = %q, want done", last.Status)
	}
}

func TestIncidentalAbortDiscardsSilently(t *testing.T) {
	streamer := &scriptedStreamer{events: []StreamEvent{event(t, EventDelta, `{"text":"partial"}`)}, blocked: true}
	controller, store := newTestController(t, streamer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = controller.Send(context.Background(), "hello")
	}()
	waitForStreaming(t, controller)
	controller.AbortIncidental()
	<-done

	messages := controller.Messages()
	last := messages[len(messages)-1]
	if last.Status == StatusError {
		t.Errorf("incidental abort must not produce an error state, got %q", last.Status)
	}
	if last.Content == StoppedText {
		t.Error("incidental abort must not look like a user stop")
	}
	if len(store.Sessions()) != 1 {
		// EnsureSessionID created the (empty) session; the abort itself
		// must not have committed messages into it.
		t.Fatalf("session count = %d, want 1", len(store.Sessions()))
	}
	if got := len(store.Sessions()[0].Messages); got != 0 {
		t.Errorf("persisted messages = %d, want 0 (discarded)", got)
	}
}

func TestErrorEventSurfacesInline(t *testing.T) {
	streamer := &scriptedStreamer{events: []StreamEvent{
		event(t, EventStart, ""),
		event(t, EventError, `{"message":"model unavailable"}`),
	}}
	controller, _ := newTestController(t, streamer)

	if err := controller.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v, stream errors must be inline", err)
	}

	messages := controller.Messages()
	last := messages[len(messages)-1]
	if last.Status != StatusError {
		t.Errorf("status = %q, want error", last.Status)
	}
	if !strings.Contains(last.Content, "model unavailable") {
		t.Errorf("content = %q, want the error message inline", last.Content)
	}
}

func TestTransportFailureSurfacesInline(t *testing.T) {
	streamer := &scriptedStreamer{err: &StreamError{Stage: "connect", Err: errors.New("connection refused")}}
	controller, _ := newTestController(t, streamer)

	if err := controller.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v, transport errors must be inline", err)
	}

	messages := controller.Messages()
	last := messages[len(messages)-1]
	if last.Status != StatusError {
		t.Errorf("status = %q, want error", last.Status)
	}
}

func TestEmptyDeltasIgnored(t *testing.T) {
	streamer := &scriptedStreamer{events: []StreamEvent{
		event(t, EventStart, ""),
		event(t, EventDelta, `{"text":""}`),
		event(t, EventDelta, `{"text":"real"}`),
		event(t, EventDone, `{"content":"real"}`),
	}}
	controller, _ := newTestController(t, streamer)

	var deltas int
	controller.OnDelta(func(string) { deltas++ })

	if err := controller.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if deltas != 1 {
		t.Errorf("delta callbacks = %d, want 1 (empty delta ignored)", deltas)
	}
}

func TestSendAppendsBeforeRequest(t *testing.T) {
	// The user message and placeholder must be visible before any
	// network activity: the probe observes them at request time.
	store, _ := newTestStore(t, "user-1")
	probe := &probeStreamer{inner: &scriptedStreamer{}}
	controller := NewController(probe, store)
	controller.SetEnabled(true)
	probe.onRequest = func() int { return len(controller.Messages()) }

	_ = controller.Send(context.Background(), "hello")
	if probe.observed != 2 {
		t.Errorf("messages visible at request time = %d, want 2", probe.observed)
	}
}

type probeStreamer struct {
	inner     *scriptedStreamer
	onRequest func() int
	observed  int
}

func (p *probeStreamer) StreamChat(ctx context.Context, req ChatRequest, handler func(StreamEvent) error) error {
	if p.onRequest != nil {
		p.observed = p.onRequest()
	}
	return p.inner.StreamChat(ctx, req, handler)
}

func TestDoneBindsConversationID(t *testing.T) {
	streamer := &scriptedStreamer{events: []StreamEvent{
		event(t, EventDone, `{"content":"hi","conversation_id":"conv-new"}`),
	}}
	controller, store := newTestController(t, streamer)

	if err := controller.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	session := store.Sessions()[0]
	if session.ConversationID != "conv-new" {
		t.Errorf("ConversationID = %q, want conv-new", session.ConversationID)
	}
}
