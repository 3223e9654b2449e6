// Package attribution identifies who created a capture. Entry points stamp a
// client name (api, cli, watcher, importer); the CLI additionally records the
// local operator.
package attribution

import (
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Client attribution values stamped on captures by each intake path.
const (
	ClientAPI      = "api"
	ClientCLI      = "cli"
	ClientWatcher  = "watcher"
	ClientImporter = "importer"
)

var (
	cachedOperator string
	once           sync.Once
)

// DetectOperator returns the best available local operator name.
// Checks in order: ATTIC_OPERATOR env, ATTIC_USER env, git config user.name,
// "unknown". The git config result is cached after first call.
func DetectOperator() string {
	once.Do(func() {
		cachedOperator = detectOperatorUncached()
	})
	return cachedOperator
}

// detectOperatorUncached performs detection without caching. Used for testing.
func detectOperatorUncached() string {
	if name := os.Getenv("ATTIC_OPERATOR"); name != "" {
		return name
	}
	if name := os.Getenv("ATTIC_USER"); name != "" {
		return name
	}
	if name := gitUserName(); name != "" {
		return name
	}
	return "unknown"
}

// gitUserName runs `git config --get user.name` and returns the trimmed
// result. Returns empty string on any error.
func gitUserName() string {
	out, err := exec.Command("git", "config", "--get", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
