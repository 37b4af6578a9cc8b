package internal

import (
	"strings"
	"testing"
)

func TestContextLabel(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{
			name: "global context",
			ctx:  GlobalContext(),
			want: "Global Chat",
		},
		{
			name: "surrogate with name",
			ctx:  SurrogateContext("s-1", "Jane Doe"),
			want: "Jane Doe",
		},
		{
			name: "surrogate without name",
			ctx:  SurrogateContext("s-1", ""),
			want: "Surrogate s-1",
		},
		{
			name: "zero value is global",
			ctx:  Context{},
			want: "Global Chat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextSame(t *testing.T) {
	tests := []struct {
		name string
		a, b Context
		want bool
	}{
		{"global matches global", GlobalContext(), Context{}, true},
		{"global does not match surrogate", GlobalContext(), SurrogateContext("s-1", ""), false},
		{"same surrogate", SurrogateContext("s-1", "A"), SurrogateContext("s-1", "B"), true},
		{"different surrogate", SurrogateContext("s-1", ""), SurrogateContext("s-2", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Same(tt.b); got != tt.want {
				t.Errorf("Same() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionMatches(t *testing.T) {
	globalSession := CreateTestChatSession("g1")
	surrogateSession := CreateTestChatSessionWithMessages("s1", SurrogateContext("s-9", "Case"), CreateTestMessages(2))

	if !globalSession.Matches(GlobalContext()) {
		t.Error("global session should match global context")
	}
	if globalSession.Matches(SurrogateContext("s-9", "")) {
		t.Error("global session should not match surrogate context")
	}
	if !surrogateSession.Matches(SurrogateContext("s-9", "")) {
		t.Error("surrogate session should match its own context")
	}
	if surrogateSession.Matches(GlobalContext()) {
		t.Error("surrogate session should not match global context")
	}
}

func TestDerivePreview(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name:     "empty list",
			messages: nil,
			want:     "",
		},
		{
			name: "picks most recent user message",
			messages: []Message{
				{Role: "user", Content: "first question"},
				{Role: "assistant", Content: "an answer"},
				{Role: "user", Content: "second question"},
				{Role: "assistant", Content: "another answer"},
			},
			want: "second question",
		},
		{
			name: "assistant only",
			messages: []Message{
				{Role: "assistant", Content: "hello"},
			},
			want: "",
		},
		{
			name: "long message is truncated",
			messages: []Message{
				{Role: "user", Content: strings.Repeat("x", 200)},
			},
			want: strings.Repeat("x", 77) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePreview(tt.messages); got != tt.want {
				t.Errorf("DerivePreview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeMessagesDropsWelcome(t *testing.T) {
	messages := []Message{
		WelcomeMessage(),
		{ID: "user-1", Role: "user", Content: "hi", Status: StatusDone},
	}

	got := NormalizeMessages(messages)
	if len(got) != 1 {
		t.Fatalf("NormalizeMessages() returned %d messages, want 1", len(got))
	}
	if got[0].ID != "user-1" {
		t.Errorf("kept message = %q, want user-1", got[0].ID)
	}
}

func TestNormalizeMessagesCoercesInterruptedStatus(t *testing.T) {
	messages := []Message{
		{ID: "a", Role: "assistant", Content: "partial", Status: StatusStreaming},
		{ID: "b", Role: "assistant", Content: "", Status: StatusThinking},
		{ID: "c", Role: "assistant", Content: "broken", Status: StatusError},
	}

	got := NormalizeMessages(messages)
	if got[0].Status != StatusDone {
		t.Errorf("streaming status = %q, want done", got[0].Status)
	}
	if got[1].Status != StatusDone {
		t.Errorf("thinking status = %q, want done", got[1].Status)
	}
	if got[2].Status != StatusError {
		t.Errorf("error status = %q, want error preserved", got[2].Status)
	}
}

func TestNormalizeMessagesCapsAtFifty(t *testing.T) {
	messages := CreateTestMessages(MaxSessionMessages + 10)

	got := NormalizeMessages(messages)
	if len(got) != MaxSessionMessages {
		t.Fatalf("NormalizeMessages() kept %d messages, want %d", len(got), MaxSessionMessages)
	}
	// Newest entries survive
	if got[len(got)-1].ID != messages[len(messages)-1].ID {
		t.Errorf("last message = %q, want %q", got[len(got)-1].ID, messages[len(messages)-1].ID)
	}
	if got[0].ID != messages[10].ID {
		t.Errorf("first message = %q, want %q (oldest dropped first)", got[0].ID, messages[10].ID)
	}
}

func TestPatchActionStatus(t *testing.T) {
	messages := []Message{
		{
			ID:   "m1",
			Role: "assistant",
			ProposedActions: []ProposedAction{
				{ApprovalID: "a1", ActionType: "create_task", Status: ActionPending},
				{ApprovalID: "a2", ActionType: "send_email", Status: ActionPending},
			},
		},
		{
			ID:   "m2",
			Role: "assistant",
			ProposedActions: []ProposedAction{
				{ApprovalID: "a1", ActionType: "create_task", Status: ActionPending},
			},
		},
	}

	patched, changed := PatchActionStatus(messages, "a1", ActionApproved)
	if !changed {
		t.Fatal("PatchActionStatus() changed = false, want true")
	}
	if patched[0].ProposedActions[0].Status != ActionApproved {
		t.Error("first a1 action not approved")
	}
	if patched[1].ProposedActions[0].Status != ActionApproved {
		t.Error("second a1 action not approved")
	}
	if patched[0].ProposedActions[1].Status != ActionPending {
		t.Error("a2 action should be untouched")
	}

	// Original list is untouched
	if messages[0].ProposedActions[0].Status != ActionPending {
		t.Error("input list was mutated")
	}
}

func TestPatchActionStatusEmptyID(t *testing.T) {
	messages := []Message{
		{ID: "m1", ProposedActions: []ProposedAction{{ApprovalID: "", Status: ActionPending}}},
	}

	_, changed := PatchActionStatus(messages, "", ActionApproved)
	if changed {
		t.Error("empty approval id must be a no-op")
	}
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")
	if msg.Role != "user" {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if msg.Status != StatusDone {
		t.Errorf("Status = %q, want done", msg.Status)
	}
	if !strings.HasPrefix(msg.ID, "user-") {
		t.Errorf("ID = %q, want user- prefix", msg.ID)
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()
	if msg.Role != "assistant" {
		t.Errorf("Role = %q, want assistant", msg.Role)
	}
	if msg.Status != StatusThinking {
		t.Errorf("Status = %q, want thinking", msg.Status)
	}
	if msg.Content != "" {
		t.Errorf("Content = %q, want empty", msg.Content)
	}
}
