package cmd

import (
	"fmt"
	"strings"

	"github.com/carebridge/assist-chat/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var showLimit int

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	actionLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Padding(0, 2)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show messages for a stored session",
	Long: `Display messages from a stored chat session.

The session id may be abbreviated to any unique prefix; use
'assist-chat list' to see available ids.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Teardown() }()

		session, err := findSession(store, args[0])
		if err != nil {
			return err
		}

		displaySession(session, showLimit)
		return nil
	},
}

// findSession resolves a possibly-abbreviated session id.
func findSession(store *internal.SessionStore, id string) (*internal.ChatSession, error) {
	if session, ok := store.Get(id); ok {
		return &session, nil
	}

	var match *internal.ChatSession
	for _, session := range store.Sessions() {
		if strings.HasPrefix(session.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("session id %q is ambiguous", id)
			}
			s := session
			match = &s
		}
	}
	if match == nil {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return match, nil
}

func displaySession(session *internal.ChatSession, limit int) {
	fmt.Println(sessionHeaderStyle.Render(session.Label))

	meta := fmt.Sprintf("id: %s • scope: %s", session.ID, session.EntityType)
	if session.EntityID != "" {
		meta += ":" + session.EntityID
	}
	if session.UpdatedAt != "" {
		meta += " • updated: " + formatUpdatedAt(session.UpdatedAt)
	}
	fmt.Println(sessionMetaStyle.Render(meta))

	messages := session.Messages
	if limit > 0 && len(messages) > limit {
		fmt.Println(sessionMetaStyle.Render(fmt.Sprintf("(showing last %d of %d messages)", limit, len(messages))))
		messages = messages[len(messages)-limit:]
	}

	for _, msg := range messages {
		header := assistantMessageStyle.Render("Assistant")
		if msg.Role == "user" {
			header = userMessageStyle.Render("You")
		}
		if msg.Timestamp != "" {
			header += " " + timestampStyle.Render(msg.Timestamp)
		}
		fmt.Println(header)
		fmt.Println(messageContentStyle.Render(msg.Content))

		for _, action := range msg.ProposedActions {
			line := fmt.Sprintf("proposed action [%s] %s", action.Status, action.ActionType)
			if action.ApprovalID != "" {
				line += " (approval id: " + action.ApprovalID + ")"
			}
			fmt.Println(actionLineStyle.Render(line))
		}
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Show only the last N messages")
}
