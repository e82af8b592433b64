package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanderheijden86/flatree/pkg/loader"
	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/visindex"
)

type dirEntry struct {
	name    string
	dir     bool
	size    int64
	modTime time.Time
}

// DirSource serves a directory tree. Listings are read on first use and
// cached; the cache is the authoritative child order until invalidated, so
// change events can be applied one entry at a time and turned into index
// paths.
type DirSource struct {
	rows
	root       string
	ignore     *loader.Matcher
	showHidden bool
	cache      map[string][]dirEntry
	log        zerolog.Logger
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithHidden includes dot files.
func WithHidden(show bool) DirOption {
	return func(s *DirSource) { s.showHidden = show }
}

// WithIgnore filters entries matching m. By default the root's ignore files
// are loaded.
func WithIgnore(m *loader.Matcher) DirOption {
	return func(s *DirSource) { s.ignore = m }
}

// WithDirLogger sets the logger for listing failures.
func WithDirLogger(l zerolog.Logger) DirOption {
	return func(s *DirSource) { s.log = l }
}

// NewDirSource opens root, which must be a directory.
func NewDirSource(root string, opts ...DirOption) (*DirSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	s := &DirSource{
		root:  abs,
		cache: make(map[string][]dirEntry),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ignore == nil {
		m, err := loader.LoadIgnore(abs)
		if err != nil {
			return nil, fmt.Errorf("load ignore files: %w", err)
		}
		m.Add(loader.StateDir + "/")
		s.ignore = m
	}
	return s, nil
}

func (s *DirSource) Name() string { return s.root }
func (s *DirSource) Root() string { return s.root }
func (s *DirSource) Close() error { return nil }

// Reload drops every cached listing.
func (s *DirSource) Reload() error {
	clear(s.cache)
	return nil
}

// Invalidate drops the cached listing of dir and everything below it.
func (s *DirSource) Invalidate(dir string) {
	dir = filepath.Clean(dir)
	for k := range s.cache {
		if k == dir || strings.HasPrefix(k, dir+string(filepath.Separator)) {
			delete(s.cache, k)
		}
	}
}

func (s *DirSource) hidden(rel string, e dirEntry) bool {
	if !s.showHidden && strings.HasPrefix(e.name, ".") {
		return true
	}
	return s.ignore.Match(rel, e.dir)
}

// Skip reports whether fsPath is left out of listings. It has the shape
// watcher.WithFilter expects, so events under ignored paths never arrive.
func (s *DirSource) Skip(fsPath string, isDir bool) bool {
	rel := s.rel(fsPath)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return s.hidden(rel, dirEntry{name: filepath.Base(fsPath), dir: isDir})
}

func (s *DirSource) rel(fsPath string) string {
	r, err := filepath.Rel(s.root, fsPath)
	if err != nil {
		return fsPath
	}
	return r
}

// less orders directories first, then names case-insensitively.
func less(a, b dirEntry) int {
	if a.dir != b.dir {
		if a.dir {
			return -1
		}
		return 1
	}
	if c := strings.Compare(strings.ToLower(a.name), strings.ToLower(b.name)); c != 0 {
		return c
	}
	return strings.Compare(a.name, b.name)
}

func (s *DirSource) list(dir string) ([]dirEntry, error) {
	if entries, ok := s.cache[dir]; ok {
		return entries, nil
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]dirEntry, 0, len(des))
	for _, de := range des {
		e, err := entryFor(dir, de)
		if err != nil {
			s.log.Debug().Err(err).Str("dir", dir).Str("name", de.Name()).Msg("skipping entry")
			continue
		}
		if s.hidden(s.rel(filepath.Join(dir, e.name)), e) {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, less)
	s.cache[dir] = entries
	return entries, nil
}

func entryFor(dir string, de fs.DirEntry) (dirEntry, error) {
	info, err := de.Info()
	if err != nil {
		return dirEntry{}, err
	}
	isDir := de.IsDir()
	if de.Type()&fs.ModeSymlink != 0 {
		if st, err := os.Stat(filepath.Join(dir, de.Name())); err == nil {
			isDir = st.IsDir()
		}
	}
	return dirEntry{name: de.Name(), dir: isDir, size: info.Size(), modTime: info.ModTime()}, nil
}

// resolve walks p through the listings and returns the filesystem path and
// entry of the node.
func (s *DirSource) resolve(p visindex.Path) (string, dirEntry, error) {
	dir := s.root
	e := dirEntry{name: filepath.Base(s.root), dir: true}
	for depth, i := range p {
		if !e.dir {
			return "", dirEntry{}, fmt.Errorf("path %s: %s is not a directory", p, dir)
		}
		entries, err := s.list(dir)
		if err != nil {
			return "", dirEntry{}, err
		}
		if i < 0 || i >= len(entries) {
			return "", dirEntry{}, fmt.Errorf("path %s: index %d out of range at depth %d", p, i, depth)
		}
		e = entries[i]
		dir = filepath.Join(dir, e.name)
	}
	return dir, e, nil
}

// ChildCount implements visindex.Provider.
func (s *DirSource) ChildCount(p visindex.Path) (int, error) {
	fsPath, e, err := s.resolve(p)
	if err != nil {
		return 0, err
	}
	if !e.dir {
		return 0, nil
	}
	entries, err := s.list(fsPath)
	if err != nil {
		// Unreadable directories show up empty.
		s.log.Warn().Err(err).Str("dir", fsPath).Msg("cannot list directory")
		return 0, nil
	}
	return len(entries), nil
}

// Item implements visindex.Provider.
func (s *DirSource) Item(p visindex.Path, leaf bool) (visindex.Item, error) {
	_, e, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	kind := model.KindFile
	if e.dir {
		kind = model.KindDir
	}
	row := &model.Row{
		Path:        append([]int(nil), p...),
		Depth:       len(p) - 1,
		Title:       e.name,
		Kind:        kind,
		Leaf:        leaf,
		Expanded:    !leaf,
		HasChildren: e.dir,
	}
	return s.produce(row), nil
}

// Recycle implements visindex.Provider.
func (s *DirSource) Recycle(p visindex.Path, item visindex.Item) error {
	return s.recycle(p, item)
}

// FSPath returns the filesystem path of the node at p.
func (s *DirSource) FSPath(p visindex.Path) (string, error) {
	fsPath, _, err := s.resolve(p)
	return fsPath, err
}

// PathOf maps a filesystem path to its tree path. It reports false when the
// entry or one of its ancestors is not in a cached listing, in which case
// the index cannot be showing it.
func (s *DirSource) PathOf(fsPath string) (visindex.Path, bool) {
	rel := s.rel(filepath.Clean(fsPath))
	if rel == "." {
		return visindex.Path{}, true
	}
	if strings.HasPrefix(rel, "..") {
		return nil, false
	}
	dir := s.root
	var p visindex.Path
	for _, name := range strings.Split(rel, string(filepath.Separator)) {
		entries, ok := s.cache[dir]
		if !ok {
			return nil, false
		}
		i := slices.IndexFunc(entries, func(e dirEntry) bool { return e.name == name })
		if i < 0 {
			return nil, false
		}
		p = append(p, i)
		dir = filepath.Join(dir, name)
	}
	return p, true
}

// Added records a newly created entry in its parent's cached listing and
// returns the tree path to notify. It reports false when there is nothing to
// notify: the parent was never listed, the entry is filtered, or it is
// already known.
func (s *DirSource) Added(fsPath string) (visindex.Path, bool) {
	fsPath = filepath.Clean(fsPath)
	parent := filepath.Dir(fsPath)
	parentPath, ok := s.PathOf(parent)
	if !ok {
		return nil, false
	}
	entries, ok := s.cache[parent]
	if !ok {
		return nil, false
	}
	info, err := os.Stat(fsPath)
	if err != nil {
		return nil, false
	}
	e := dirEntry{name: filepath.Base(fsPath), dir: info.IsDir(), size: info.Size(), modTime: info.ModTime()}
	if s.hidden(s.rel(fsPath), e) {
		return nil, false
	}
	i, found := slices.BinarySearchFunc(entries, e, less)
	if found {
		return nil, false
	}
	s.cache[parent] = slices.Insert(entries, i, e)
	return parentPath.Child(i), true
}

// Removed drops a deleted entry from its parent's cached listing and
// returns the tree path to notify.
func (s *DirSource) Removed(fsPath string) (visindex.Path, bool) {
	fsPath = filepath.Clean(fsPath)
	p, ok := s.PathOf(fsPath)
	if !ok || len(p) == 0 {
		return nil, false
	}
	parent := filepath.Dir(fsPath)
	s.cache[parent] = slices.Delete(s.cache[parent], p.Last(), p.Last()+1)
	s.Invalidate(fsPath)
	return p, true
}
