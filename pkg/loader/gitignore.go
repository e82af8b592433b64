// Package loader handles ignore files: the patterns that hide entries from
// directory sources, and keeping the .ft state directory out of git.
package loader

import (
	"os"
	"path/filepath"
)

// StateDir is the per-project directory holding config and saved tree state.
const StateDir = ".ft"

// EnsureStateDirIgnored ensures that .ft/ is listed in the project's .gitignore
// file so saved expand state and logs stay out of the repository.
//
// The function is idempotent. It creates .gitignore if it doesn't exist and
// preserves existing content. An empty projectDir means the current directory.
func EnsureStateDirIgnored(projectDir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")

	covered, err := stateDirCovered(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if covered {
		return nil
	}

	return appendToGitignore(gitignorePath, StateDir+"/")
}

// stateDirCovered reports whether the patterns in the file already hide the
// state directory or everything inside it.
func stateDirCovered(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	m, err := ParseIgnore(f)
	if err != nil {
		return false, err
	}
	return m.Match(StateDir, true) || m.Match(StateDir+"/tree-state.json", false), nil
}

// appendToGitignore appends a pattern to the .gitignore file, creating it if
// needed and keeping a blank line between our block and existing content.
func appendToGitignore(path string, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	block := "# ft (flatree) local state\n" + pattern + "\n"
	if len(content) > 0 {
		sep := "\n"
		if content[len(content)-1] != '\n' {
			sep = "\n\n"
		}
		block = sep + block
	}

	_, err = file.WriteString(block)
	return err
}
