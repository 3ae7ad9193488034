package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHATLEDGER_CONFIG", "")
	t.Setenv("STORAGE_BACKENDS", "bolt")
	t.Setenv("BOLT_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("REPLY_DELAY", "0s")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	confirmDrafts, historyLimit, historyTxs, resetYes = false, 10, false, false
	profile, debug, envFile = "", false, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestChatConfirmAndStats(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "chat", "--confirm", "Coffee", "4.50")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if !strings.Contains(out, "[confirmed]") || !strings.Contains(out, "-4.50") {
		t.Errorf("Expected a confirmed expense card, got:\n%s", out)
	}

	out, err = run(t, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "-4.50") || !strings.Contains(out, "Food & Dining") {
		t.Errorf("Expected the coffee in the stats, got:\n%s", out)
	}

	out, err = run(t, "history", "--transactions")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "Food & Dining") {
		t.Errorf("Expected the confirmed transaction in history, got:\n%s", out)
	}
}

func TestChatStdin(t *testing.T) {
	setupEnv(t)

	confirmDrafts = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader("hello\n\nTaxi 12\n"))
	rootCmd.SetArgs([]string{"chat"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if !strings.Contains(out.String(), "[draft]") {
		t.Errorf("Expected a draft card, got:\n%s", out.String())
	}

	hist, err := run(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(hist, "you: hello") || !strings.Contains(hist, "you: Taxi 12") {
		t.Errorf("Expected both messages in history, got:\n%s", hist)
	}
}

func TestConfirmUnknown(t *testing.T) {
	setupEnv(t)

	if _, err := run(t, "confirm", "missing"); err == nil {
		t.Error("Expected error confirming an unknown id")
	}
	if _, err := run(t, "discard", "missing"); err == nil {
		t.Error("Expected error discarding an unknown id")
	}
	if _, err := run(t, "confirm"); err == nil {
		t.Error("Expected error without an id")
	}
}

func TestReset(t *testing.T) {
	setupEnv(t)

	if _, err := run(t, "chat", "--confirm", "Salary 100"); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if _, err := run(t, "reset"); err == nil {
		t.Fatal("Expected reset to require --yes")
	}

	out, err := run(t, "reset", "--yes")
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !strings.Contains(out, "@chat-to-rich-data") {
		t.Errorf("Expected the deleted key, got %q", out)
	}

	out, err = run(t, "history", "--transactions")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if strings.TrimSpace(out) != "" {
		t.Errorf("Expected no transactions after reset, got:\n%s", out)
	}
}
