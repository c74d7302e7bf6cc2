// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg locates the accounts configuration directory following the
// XDG Base Directory layout.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "accounts"

// ConfigDir returns the XDG config directory for accounts.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// FindConfig returns the path of name inside ConfigDir, or "" when no such
// regular file exists.
func FindConfig(name string) string {
	path := filepath.Join(ConfigDir(), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}
