package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// Fatalf prints a single-line diagnostic to standard error and exits
// with code 1 (spec.md §7: "configuration or invariant error").
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

func mustPrintJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		Fatalf("Failed to marshal JSON: %v", err)
	}
	fmt.Println(string(out))
}

// profileDir resolves the node's profile directory (spec.md §6 "On-disk
// layout": "Under the profile directory (default <data root>/default/)").
func profileDir(dataDir string) string {
	if dataDir == "" {
		dataDir = defaultDataDir()
	}
	return filepath.Join(dataDir, "default")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dunitrust"
	}
	return filepath.Join(home, ".dunitrust")
}

// readPassphrase prompts on standard error and reads a line from
// standard input without echoing it back, falling back to a plain
// Scanln when standard input isn't a terminal (e.g. piped in tests).
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pass), nil
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return line, nil
}
