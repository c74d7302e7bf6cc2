// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigDir(), "/custom/config/accounts"; got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	if got, want := ConfigDir(), "/home/testuser/.config/accounts"; got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestFindConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	if got := FindConfig("config.yaml"); got != "" {
		t.Errorf("FindConfig() with no file = %q, want empty", got)
	}

	dir := filepath.Join(base, "accounts")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "config.yaml"), 0o700); err != nil {
		t.Fatal(err)
	}
	if got := FindConfig("config.yaml"); got != "" {
		t.Errorf("FindConfig() on a directory = %q, want empty", got)
	}

	want := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(want, []byte("http:\n  addr: :9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfig("settings.yaml"); got != want {
		t.Errorf("FindConfig() = %q, want %q", got, want)
	}
}
