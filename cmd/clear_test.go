package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestClearCommand_RequiresForce(t *testing.T) {
	origConfig, origStore := configPath, storePath
	defer func() {
		configPath, storePath = origConfig, origStore
		clearForce = false
	}()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.yaml")
	storePath = filepath.Join(dir, "history.db")

	rootCmd.SetArgs([]string{"clear"})
	rootCmd.SetOut(&bytes.Buffer{})
	var errBuf bytes.Buffer
	rootCmd.SetErr(&errBuf)

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("Execute() error = %v, want refusal without --force", err)
	}
}
