// Package vcs provides a thin exec-based git capability. Everything here
// fails soft: a missing git binary or a non-repo root just means no
// capability, never an error that stops indexing.
package vcs

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repo is a detected git repository rooted at Root.
type Repo struct {
	Root string
}

// Detect returns a Repo when root sits inside a git work tree and the git
// binary is available, nil otherwise. Detection failure is not an error
// condition for callers; only a genuinely broken root (unreadable path)
// errors.
func Detect(root string) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("stat root %s: %w", abs, err)
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil, nil
	}
	cmd := exec.Command("git", "-C", abs, "rev-parse", "--is-inside-work-tree")
	out, err := cmd.Output()
	if err != nil || strings.TrimSpace(string(out)) != "true" {
		return nil, nil
	}
	return &Repo{Root: abs}, nil
}

// LsFiles returns the repo-relative paths of all tracked files, plus
// untracked files that are not ignored.
func (r *Repo) LsFiles() ([]string, error) {
	cmd := exec.Command("git", "-C", r.Root, "ls-files", "--cached", "--others", "--exclude-standard")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// IsIgnored reports whether the repo-relative path is currently ignored.
// The check runs git each time so .gitignore edits take effect immediately.
// Any git failure is treated as not ignored.
func (r *Repo) IsIgnored(rel string) bool {
	cmd := exec.Command("git", "-C", r.Root, "check-ignore", "-q", rel)
	err := cmd.Run()
	if err == nil {
		return true
	}
	// Exit status 1 means not ignored; anything else is a git failure and
	// we fail open.
	return false
}
