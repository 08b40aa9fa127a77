package internal

import (
	"fmt"
	"runtime"
	"strings"
)

const (

	// Program name, used for the binary, config directory and resource names.
	Name = "jarvis"

	// String to indicate an undefined variable
	defaultUndefined = "(undefined)"

	// Main branch name used in version strings
	mainBranch = "main"
)

var (
	version   = "" // Release version (e.g., "0.4.0")
	stage     = "" // Branch the release was cut from (e.g., "main", "beta")
	gitCommit = "" // Commit the binary was built from

	rawQuiet   = "false" // Whether to enable quiet mode
	rawDebug   = "false" // Whether to enable debug mode
	rawVerbose = "false" // Whether to enable verbose logging
)

// Returns the release version without a "v" prefix, or "(undefined)".
func Version() string {
	v := strings.TrimSpace(version)
	if v == "" {
		return defaultUndefined
	}
	return strings.TrimPrefix(strings.ToLower(v), "v")
}

// Returns the release stage, or "(undefined)".
func Stage() string {
	s := strings.TrimSpace(stage)
	if s == "" {
		return defaultUndefined
	}
	return strings.ToLower(s)
}

// Returns the git commit hash, or "(undefined)".
func GitCommit() string {
	c := strings.TrimSpace(gitCommit)
	if c == "" {
		return defaultUndefined
	}
	return c
}

// Returns the platform the binary was built for (e.g., "linux/amd64").
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Returns true if the binary was not built by the release pipeline.
//
// Release builds set version, commit and stage through linker flags.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns a one-line description of the build.
//
// Release builds read "jarvis <version>[+<stage>] <commit> [<platform>]",
// with the stage omitted for the main branch. Local builds read
// "jarvis (local) [<platform>]".
func VersionString() string {
	if IsLocal() {
		return fmt.Sprintf("%s (local) [%s]", Name, Platform())
	}

	s := Stage()
	if s == mainBranch {
		s = ""
	} else {
		s = "+" + s
	}

	return fmt.Sprintf("%s %s%s %s [%s]", Name, Version(), s, GitCommit(), Platform())
}
