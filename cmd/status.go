package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend connectivity and assistant availability",
	Long: `Check that assist-chat can reach the backend, whether the AI
assistant is enabled, and how much local history is stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("Assistant Status"))
		fmt.Println()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(infoStyle.Render("Server: ") + cfg.ServerURL)
		fmt.Println(infoStyle.Render("User:   ") + cfg.UserID)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		client := newClient(cfg)
		settings, err := client.Settings(ctx)
		if err != nil {
			fmt.Println(errorStatusStyle.Render("Backend unreachable: ") + err.Error())
			return err
		}

		if settings.IsEnabled {
			fmt.Println(successStyle.Render("Assistant enabled") + infoStyle.Render(fmt.Sprintf(" (%s/%s)", settings.Provider, settings.Model)))
		} else {
			fmt.Println(errorStatusStyle.Render("Assistant disabled"))
		}

		store, err := openStore(cfg)
		if err != nil {
			fmt.Println(errorStatusStyle.Render("History store unavailable: ") + err.Error())
			return err
		}
		defer func() { _ = store.Teardown() }()

		sessions := store.Sessions()
		total := 0
		for _, session := range sessions {
			total += len(session.Messages)
		}
		fmt.Println(infoStyle.Render(fmt.Sprintf("Local history: %d session(s), %d message(s)", len(sessions), total)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
