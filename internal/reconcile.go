package internal

// HistoryFetch carries the state of the server conversation-history
// fetch for the current context. Settled is false while the fetch is
// still outstanding; an unsettled fetch never influences the display.
type HistoryFetch struct {
	Settled        bool
	ConversationID string
	Messages       []Message
}

// SettledHistory wraps completed server history for reconciliation.
func SettledHistory(history *ConversationHistory) HistoryFetch {
	if history == nil {
		return HistoryFetch{Settled: true}
	}
	return HistoryFetch{
		Settled:        true,
		ConversationID: history.ConversationID,
		Messages:       history.Messages,
	}
}

// Reconciler decides what message list a chat surface should display,
// given three competing sources: an active stream, locally stored
// session history, and server-fetched conversation history.
type Reconciler struct {
	store      *SessionStore
	controller *Controller
}

// NewReconciler creates a reconciler over the given store and controller.
func NewReconciler(store *SessionStore, controller *Controller) *Reconciler {
	return &Reconciler{store: store, controller: controller}
}

// Resolve returns the message list to display for the given context.
// Priority, highest first: an in-progress stream for this context; a
// stored session for this context with at least one message; settled
// server history; the default welcome message.
func (r *Reconciler) Resolve(chatCtx Context, serverHistory HistoryFetch) []Message {
	if r.controller.Streaming() && r.controller.Context().Same(chatCtx) {
		return r.controller.Messages()
	}

	if session, ok := r.localSession(chatCtx); ok && len(session.Messages) > 0 {
		r.install(chatCtx, session.ID, session.Messages)
		return r.controller.Messages()
	}

	if serverHistory.Settled && len(serverHistory.Messages) > 0 {
		sessionID, err := r.store.EnsureSessionID(chatCtx)
		if err != nil {
			LogWarn("Failed to ensure session for server history: %v", err)
			sessionID = ""
		} else if serverHistory.ConversationID != "" {
			if err := r.store.BindConversation(sessionID, serverHistory.ConversationID); err != nil {
				LogWarn("Failed to record conversation id: %v", err)
			}
		}
		r.install(chatCtx, sessionID, serverHistory.Messages)
		return r.controller.Messages()
	}

	r.install(chatCtx, "", []Message{WelcomeMessage()})
	return r.controller.Messages()
}

// SwitchContext moves the chat surface to a new context. Any in-flight
// stream is aborted as a non-user cancellation first, so its done event
// cannot write into the wrong session, then the priority order is
// re-evaluated for the new context.
func (r *Reconciler) SwitchContext(chatCtx Context, serverHistory HistoryFetch) []Message {
	if r.controller.Streaming() && !r.controller.Context().Same(chatCtx) {
		r.controller.AbortIncidental()
	}
	return r.Resolve(chatCtx, serverHistory)
}

// localSession finds the most recent stored session for the context,
// preferring the active one.
func (r *Reconciler) localSession(chatCtx Context) (ChatSession, bool) {
	if active, ok := r.store.Active(); ok && active.Matches(chatCtx) {
		return active, true
	}
	for _, session := range r.store.Sessions() {
		if session.Matches(chatCtx) {
			return session, true
		}
	}
	return ChatSession{}, false
}

func (r *Reconciler) install(chatCtx Context, sessionID string, messages []Message) {
	r.controller.SetConversation(chatCtx, sessionID, messages)
}
