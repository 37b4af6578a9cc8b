package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/carebridge/assist-chat/internal"
	"github.com/carebridge/assist-chat/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportOutDir  string
	exportSession string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored sessions to file",
	Long: `Export stored chat sessions to various formats (jsonl, md, yaml, json).

All sessions are exported by default; use --session to export one.
Use 'assist-chat list' to see available session ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
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

		var sessions []internal.ChatSession
		if exportSession != "" {
			session, err := findSession(store, exportSession)
			if err != nil {
				return err
			}
			sessions = []internal.ChatSession{*session}
		} else {
			sessions = store.Sessions()
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions to export")
			return nil
		}

		if err := os.MkdirAll(exportOutDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		for i := range sessions {
			session := &sessions[i]
			path := filepath.Join(exportOutDir, fmt.Sprintf("session-%s.%s", session.ID, exporter.Extension()))
			if err := writeExport(exporter, session, path); err != nil {
				return err
			}
			fmt.Printf("Exported %s\n", path)
		}
		return nil
	},
}

func writeExport(exporter export.Exporter, session *internal.ChatSession, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	if err := exporter.Export(session, f); err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutDir, "output", "o", ".", "Output directory")
	exportCmd.Flags().StringVarP(&exportSession, "session", "s", "", "Export a single session by id")
}
