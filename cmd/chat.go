package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/carebridge/assist-chat/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var chatSurrogateID string

var (
	// Styles for the chat surface
	youStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	chatMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	chatErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the assistant",
	Long: `Send a message to the AI assistant and stream the reply.

With a message argument a single exchange is performed. Without one, an
interactive loop reads messages from stdin until EOF or /quit. Press
Ctrl-C while a reply is streaming to stop it; the partial reply is kept.

Use --surrogate to ground the conversation in a specific surrogate case;
otherwise the chat is global. Conversations continue where they left
off: an existing session for the same context is reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Teardown(); err != nil {
				internal.LogWarn("Failed to close history store: %v", err)
			}
		}()

		client := newClient(cfg)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		settings, err := client.Settings(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch assistant settings: %w", err)
		}
		if !settings.IsEnabled {
			return errors.New("the AI assistant is disabled for this workspace")
		}

		chatCtx, err := resolveChatContext(ctx, client)
		if err != nil {
			return err
		}

		controller := internal.NewController(client, store)
		controller.SetEnabled(true)
		reconciler := internal.NewReconciler(store, controller)

		// Best effort: server history only matters when nothing is
		// stored locally, so a failed fetch degrades to local state.
		serverHistory := internal.HistoryFetch{Settled: true}
		if history, err := client.History(ctx, chatCtx); err != nil {
			internal.LogWarn("Failed to fetch conversation history: %v", err)
		} else {
			serverHistory = internal.SettledHistory(history)
		}

		messages := reconciler.Resolve(chatCtx, serverHistory)
		fmt.Println(chatMetaStyle.Render(fmt.Sprintf("%s — %s (%s/%s)", chatCtx.Label(), "assistant ready", settings.Provider, settings.Model)))
		fmt.Println()
		renderTranscript(messages)

		// Ctrl-C stops the in-flight reply instead of killing the
		// process; a second Ctrl-C exits.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			controller.Stop()
			<-sigCh
			os.Exit(1)
		}()

		if len(args) > 0 {
			return sendOnce(ctx, controller, strings.Join(args, " "))
		}
		return interactiveLoop(ctx, controller)
	},
}

// resolveChatContext maps the --surrogate flag to a chat context,
// looking the entity name up for session labels.
func resolveChatContext(ctx context.Context, client *internal.Client) (internal.Context, error) {
	if chatSurrogateID == "" {
		return internal.GlobalContext(), nil
	}

	name := ""
	surrogates, err := client.ListSurrogates(ctx)
	if err != nil {
		internal.LogWarn("Failed to list surrogates: %v", err)
	} else {
		for _, s := range surrogates {
			if s.ID == chatSurrogateID {
				name = s.Name
				break
			}
		}
	}
	return internal.SurrogateContext(chatSurrogateID, name), nil
}

func sendOnce(ctx context.Context, controller *internal.Controller, text string) error {
	fmt.Println(youStyle.Render("you:") + " " + text)
	fmt.Print(assistantStyle.Render("assistant:") + " ")

	streamed := false
	controller.OnDelta(func(delta string) {
		streamed = true
		fmt.Print(delta)
	})

	if err := controller.Send(ctx, text); err != nil {
		fmt.Println()
		return err
	}

	finishReply(controller, streamed)
	return nil
}

func interactiveLoop(ctx context.Context, controller *internal.Controller) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(youStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		fmt.Print(assistantStyle.Render("assistant:") + " ")
		streamed := false
		controller.OnDelta(func(delta string) {
			streamed = true
			fmt.Print(delta)
		})

		if err := controller.Send(ctx, line); err != nil {
			fmt.Println()
			fmt.Println(chatErrorStyle.Render(err.Error()))
			continue
		}
		finishReply(controller, streamed)
	}
}

// finishReply prints whatever the stream did not already print: the full
// content when nothing streamed, an error line, and proposed actions.
func finishReply(controller *internal.Controller, streamed bool) {
	messages := controller.Messages()
	if len(messages) == 0 {
		fmt.Println()
		return
	}
	last := messages[len(messages)-1]

	if last.Status == internal.StatusError {
		if streamed {
			fmt.Println()
		}
		fmt.Println(chatErrorStyle.Render(last.Content))
		return
	}

	if !streamed {
		fmt.Print(last.Content)
	}
	fmt.Println()

	for _, action := range last.ProposedActions {
		line := fmt.Sprintf("proposed action [%s] %s", action.Status, action.ActionType)
		if action.ApprovalID != "" {
			line += fmt.Sprintf(" — approve with: assist-chat actions approve %s", action.ApprovalID)
		}
		fmt.Println(actionStyle.Render(line))
	}
}

func renderTranscript(messages []internal.Message) {
	for _, msg := range messages {
		label := assistantStyle.Render("assistant:")
		if msg.Role == "user" {
			label = youStyle.Render("you:")
		}
		content := msg.Content
		if msg.Status == internal.StatusError {
			content = chatErrorStyle.Render(content)
		}
		fmt.Printf("%s %s\n", label, content)
	}
	if len(messages) > 0 {
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSurrogateID, "surrogate", "", "Surrogate id to ground the conversation in")
}
