package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearForce bool

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored chat history",
	Long:  `Delete every stored chat session and the user binding from the local history store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearForce {
			return fmt.Errorf("refusing to clear history without --force")
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

		count := len(store.Sessions())
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}

		fmt.Printf("Cleared %d session(s)\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "Confirm deletion of all stored history")
}
