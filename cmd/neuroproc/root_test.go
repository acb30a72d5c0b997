package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRequiresInputAndOutput(t *testing.T) {
	if _, err := execute(t); err == nil {
		t.Fatal("expected error when --input and --output are missing")
	}
}

func TestRootRejectsMissingInputDir(t *testing.T) {
	_, err := execute(t,
		"--input", filepath.Join(t.TempDir(), "absent"),
		"--output", t.TempDir(),
	)
	if err == nil {
		t.Fatal("expected error for nonexistent input directory")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "neuroproc") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := execute(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}

	show, err := execute(t, "config", "show", "--config", target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(show, "normalize_method") {
		t.Fatalf("show output = %q", show)
	}
}

func TestJournalCommandRequiresOutput(t *testing.T) {
	if _, err := execute(t, "journal"); err == nil {
		t.Fatal("expected error without --output")
	}
}
