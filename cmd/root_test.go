package cmd

import (
	"strings"
	"testing"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "search", "download", "batch", "rm", "clear", "pending"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	rootCmd.SetArgs([]string{"clear", "--scope", "everything", "--media-dir", dir, "--log-level", "error"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "everything") {
		t.Fatalf("Expected invalid scope error, got %v", err)
	}
	if cfg.MediaDir != dir {
		t.Errorf("Expected media dir %s, got %s", dir, cfg.MediaDir)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected log level error, got %s", cfg.LogLevel)
	}
}

func TestRemoveRejectsUnknownType(t *testing.T) {
	rootCmd.SetArgs([]string{"rm", "abc", "Some Title", "--type", "gif", "--log-level", "error"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("Expected error for unknown media type")
	}
}
