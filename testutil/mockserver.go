package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// AssistantServerOptions configures the scripted mock backend.
type AssistantServerOptions struct {
	// SettingsJSON is served from /api/ai/settings. Defaults to an
	// enabled assistant.
	SettingsJSON string
	// SurrogatesJSON is served from /api/surrogates.
	SurrogatesJSON string
	// HistoryJSON is served from /api/ai/conversations.
	HistoryJSON string
	// StreamEvents are the raw JSON events written as SSE data lines in
	// order for each chat request.
	StreamEvents []string
	// ActionStatus is the status code for action approve/reject calls.
	// Defaults to 200.
	ActionStatus int
	// BlockStream, when non-nil, is closed by the test to let the
	// stream progress past the first event. Used for cancellation
	// tests: the first event is written, then the handler waits.
	BlockStream chan struct{}
}

// AssistantServer is a scripted stand-in for the assistant backend.
type AssistantServer struct {
	*httptest.Server

	mu           sync.Mutex
	chatRequests []string
	actionCalls  []string
}

// ChatRequests returns the raw bodies of chat requests received so far.
func (s *AssistantServer) ChatRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.chatRequests))
	copy(out, s.chatRequests)
	return out
}

// ActionCalls returns the paths of action resolutions received so far.
func (s *AssistantServer) ActionCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.actionCalls))
	copy(out, s.actionCalls)
	return out
}

// NewAssistantServer starts a mock backend. It is shut down when the
// test ends.
func NewAssistantServer(t *testing.T, opts AssistantServerOptions) *AssistantServer {
	t.Helper()

	if opts.SettingsJSON == "" {
		opts.SettingsJSON = `{"is_enabled":true,"provider":"openai","model":"gpt-4o"}`
	}
	if opts.SurrogatesJSON == "" {
		opts.SurrogatesJSON = `{"surrogates":[]}`
	}
	if opts.HistoryJSON == "" {
		opts.HistoryJSON = `{"messages":[]}`
	}
	if opts.ActionStatus == 0 {
		opts.ActionStatus = http.StatusOK
	}

	server := &AssistantServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ai/settings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, opts.SettingsJSON)
	})

	mux.HandleFunc("/api/surrogates", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, opts.SurrogatesJSON)
	})

	mux.HandleFunc("/api/ai/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, opts.HistoryJSON)
	})

	mux.HandleFunc("/api/ai/actions/", func(w http.ResponseWriter, r *http.Request) {
		server.mu.Lock()
		server.actionCalls = append(server.actionCalls, r.URL.Path)
		server.mu.Unlock()
		w.WriteHeader(opts.ActionStatus)
	})

	mux.HandleFunc("/api/ai/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		server.mu.Lock()
		server.chatRequests = append(server.chatRequests, strings.TrimSpace(string(body)))
		server.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)

		for i, event := range opts.StreamEvents {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			if flusher != nil {
				flusher.Flush()
			}
			if i == 0 && opts.BlockStream != nil {
				select {
				case <-opts.BlockStream:
				case <-r.Context().Done():
					return
				}
			}
		}
	})

	server.Server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}
