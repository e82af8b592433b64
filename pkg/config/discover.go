package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/flatree/pkg/loader"
)

// sourceExts are the file types the picker offers.
var sourceExts = map[string]bool{
	".yaml": true, ".yml": true, ".json": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

// DiscoverSources returns the bookmarked sources followed by documents and
// databases found under the discovery scan paths. A discovered file whose
// path matches a bookmark keeps the bookmark's name.
func DiscoverSources(cfg Config) []Bookmark {
	seen := make(map[string]bool)
	var result []Bookmark

	for _, b := range cfg.Sources {
		seen[b.ResolvedPath()] = true
		result = append(result, b)
	}

	maxDepth := cfg.Discovery.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	for _, scanPath := range cfg.Discovery.ScanPaths {
		for _, f := range scanForSources(scanPath, maxDepth) {
			if !seen[f] {
				seen[f] = true
				result = append(result, Bookmark{Name: filepath.Base(f), Path: f})
			}
		}
	}

	return result
}

// scanForSources walks a directory tree up to maxDepth levels deep looking
// for files ft can open. Hidden directories are skipped.
func scanForSources(root string, maxDepth int) []string {
	root = expandHome(root)
	var results []string

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}

		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if d.IsDir() {
			if depth >= maxDepth || (path != root && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExts[strings.ToLower(filepath.Ext(path))] {
			results = append(results, path)
		}
		return nil
	})

	return results
}

// DetectCurrentProject finds the project root by walking up from the
// current directory looking for .ft/.
func DetectCurrentProject() (string, bool) {
	return DetectProjectFrom("")
}

// DetectProjectFrom walks up from dir (the current directory when empty)
// looking for .ft/.
func DetectProjectFrom(dir string) (string, bool) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", false
		}
	}
	return findStateRoot(dir)
}

// findStateRoot walks up from dir looking for a .ft/ directory.
func findStateRoot(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		stateDir := filepath.Join(dir, loader.StateDir)
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		// Don't go above home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}
