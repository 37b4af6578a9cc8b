package internal

import "context"

// ActionResolver forwards an approve/reject decision to the backend.
type ActionResolver interface {
	ResolveAction(ctx context.Context, approvalID string, approve bool) error
}

// ApprovalFlow lets the operator approve or reject a proposed action
// surfaced by the assistant. The backend call happens first; local state
// is only patched on success, so a failed call leaves the displayed
// status unchanged.
type ApprovalFlow struct {
	client     ActionResolver
	store      *SessionStore
	controller *Controller
}

// NewApprovalFlow creates an approval flow over the active conversation.
func NewApprovalFlow(client ActionResolver, store *SessionStore, controller *Controller) *ApprovalFlow {
	return &ApprovalFlow{client: client, store: store, controller: controller}
}

// Approve marks the action approved. A blank approval id is a no-op.
func (f *ApprovalFlow) Approve(ctx context.Context, approvalID string) error {
	return f.resolve(ctx, approvalID, true)
}

// Reject marks the action rejected. A blank approval id is a no-op.
func (f *ApprovalFlow) Reject(ctx context.Context, approvalID string) error {
	return f.resolve(ctx, approvalID, false)
}

func (f *ApprovalFlow) resolve(ctx context.Context, approvalID string, approve bool) error {
	if approvalID == "" {
		return nil
	}

	if err := f.client.ResolveAction(ctx, approvalID, approve); err != nil {
		// State stays untouched; no automatic retry.
		LogError("Failed to resolve action %s: %v", approvalID, err)
		return err
	}

	status := ActionRejected
	if approve {
		status = ActionApproved
	}

	messages := f.currentMessages()
	patched, changed := PatchActionStatus(messages, approvalID, status)
	if !changed {
		return nil
	}

	chatCtx := f.controller.Context()
	sessionID := f.controller.SessionID()
	f.controller.SetConversation(chatCtx, sessionID, patched)
	if sessionID != "" {
		if err := f.store.UpdateSessionMessages(sessionID, patched, chatCtx); err != nil {
			LogWarn("Failed to persist action status: %v", err)
		}
	}
	return nil
}

func (f *ApprovalFlow) currentMessages() []Message {
	if msgs := f.controller.Messages(); len(msgs) > 0 {
		return msgs
	}
	if session, ok := f.store.Active(); ok {
		return session.Messages
	}
	return nil
}
