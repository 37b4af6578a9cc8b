package cmd

import (
	"context"
	"fmt"

	"github.com/carebridge/assist-chat/internal"
	"github.com/spf13/cobra"
)

// actionsCmd groups approve/reject for assistant-proposed actions
var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Approve or reject assistant-proposed actions",
	Long: `Approve or reject an action the assistant proposed in a chat reply.

Approval ids are shown alongside proposed actions in chat output and in
'assist-chat show'. The decision is forwarded to the backend first; the
stored session is only updated when the backend accepts it.`,
}

var approveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a proposed action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveActionCommand(cmd.Context(), args[0], true)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <approval-id>",
	Short: "Reject a proposed action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveActionCommand(cmd.Context(), args[0], false)
	},
}

func resolveActionCommand(ctx context.Context, approvalID string, approve bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Teardown() }()

	client := newClient(cfg)
	controller := internal.NewController(client, store)

	// Make the session holding this approval id the active one so the
	// patched list lands back in the right place.
	if session, ok := sessionForApproval(store, approvalID); ok {
		store.SetActive(session.ID)
		controller.SetConversation(session.Context(), session.ID, session.Messages)
	}

	flow := internal.NewApprovalFlow(client, store, controller)
	if approve {
		err = flow.Approve(ctx, approvalID)
	} else {
		err = flow.Reject(ctx, approvalID)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve action: %w", err)
	}

	verb := "rejected"
	if approve {
		verb = "approved"
	}
	fmt.Printf("Action %s %s\n", approvalID, verb)
	return nil
}

// sessionForApproval finds the stored session containing the approval id.
func sessionForApproval(store *internal.SessionStore, approvalID string) (internal.ChatSession, bool) {
	for _, session := range store.Sessions() {
		for _, msg := range session.Messages {
			for _, action := range msg.ProposedActions {
				if action.ApprovalID == approvalID {
					return session, true
				}
			}
		}
	}
	return internal.ChatSession{}, false
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(approveCmd)
	actionsCmd.AddCommand(rejectCmd)
}
