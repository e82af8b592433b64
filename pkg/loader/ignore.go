package loader

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFiles are the files LoadIgnore reads from a directory source root,
// in order. Later files take precedence.
var IgnoreFiles = []string{".gitignore", ".ftignore"}

type ignoreRule struct {
	segs     []string
	negate   bool
	dirOnly  bool
	anchored bool
}

// Matcher answers gitignore-style questions for paths relative to a root.
// The zero value ignores nothing.
type Matcher struct {
	rules []ignoreRule
}

// ParseIgnore reads ignore patterns, one per line.
func ParseIgnore(r io.Reader) (*Matcher, error) {
	m := &Matcher{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadIgnore collects the patterns of every IgnoreFiles entry present in
// dir. Missing files are skipped.
func LoadIgnore(dir string) (*Matcher, error) {
	m := &Matcher{}
	for _, name := range IgnoreFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		parsed, err := ParseIgnore(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, parsed.rules...)
	}
	return m, nil
}

// Add appends patterns. Blank lines and comments are skipped.
func (m *Matcher) Add(patterns ...string) {
	for _, line := range patterns {
		if r, ok := parseIgnoreLine(line); ok {
			m.rules = append(m.rules, r)
		}
	}
}

// Len returns the number of active patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}
	var r ignoreRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	} else if strings.HasPrefix(line, `\`) {
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if line == "" {
		return ignoreRule{}, false
	}
	// A slash anywhere but the end pins the pattern to the root.
	if strings.Contains(line, "/") {
		r.anchored = true
	}
	r.segs = strings.Split(line, "/")
	return r, true
}

// Match reports whether rel (slash or OS separated, relative to the root)
// is ignored. Anything below an ignored directory is ignored too.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m.Len() == 0 {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if m.decide(parts[:i], true) {
			return true
		}
	}
	return m.decide(parts, isDir)
}

// decide applies the rules to one path; the last matching rule wins.
func (m *Matcher) decide(parts []string, isDir bool) bool {
	ignored := false
	for _, r := range m.rules {
		if r.matches(parts, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r ignoreRule) matches(parts []string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if !r.anchored {
		ok, _ := path.Match(r.segs[0], parts[len(parts)-1])
		return ok
	}
	return matchSegments(r.segs, parts)
}

// matchSegments matches a slash-split pattern against path components,
// with "**" standing for any number of components.
func matchSegments(pat, parts []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], parts[0]); !ok {
			return false
		}
		pat, parts = pat[1:], parts[1:]
	}
	return len(parts) == 0
}
