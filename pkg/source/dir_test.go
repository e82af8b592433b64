package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/flatree/pkg/loader"
	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/visindex"
)

// makeTree creates files (and their parent directories) under a temp root.
func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if f[len(f)-1] == '/' {
			if err := os.MkdirAll(p, 0755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestDirSourceOrderingAndFiltering(t *testing.T) {
	root := makeTree(t,
		"b.txt", "A.txt", "zdir/one.go", "adir/", ".hidden", "debug.log",
		".gitignore", ".ft/tree-state.json",
	)
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource(root)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	ix := visindex.New(src)
	want := []string{"adir", "zdir", "A.txt", "b.txt"}
	if got := titles(t, ix); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	hidden, err := NewDirSource(root, WithHidden(true), WithIgnore(&loader.Matcher{}))
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	if count, _ := visindex.New(hidden).Count(); count != 8 {
		t.Errorf("expected 8 entries with hidden files shown, got %d", count)
	}
}

func TestDirSourceExpandAndRows(t *testing.T) {
	root := makeTree(t, "src/main.go", "src/util.go", "README.md")
	src, err := NewDirSource(root)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	ix := visindex.New(src)
	if err := ix.Uncollapse(visindex.Path{0}); err != nil {
		t.Fatalf("Uncollapse: %v", err)
	}
	want := []string{"src", "main.go", "util.go", "README.md"}
	if got := titles(t, ix); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	item, err := ix.Item(0)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	row := item.(*model.Row)
	if row.Kind != model.KindDir || !row.Expanded || !row.HasChildren {
		t.Errorf("unexpected dir row %+v", row)
	}
	_ = ix.Recycle(0, item)

	fsPath, err := src.FSPath(visindex.Path{0, 1})
	if err != nil || fsPath != filepath.Join(root, "src", "util.go") {
		t.Errorf("FSPath = %q (%v)", fsPath, err)
	}
	if src.Live() != 0 {
		t.Errorf("expected no live rows, got %d", src.Live())
	}
}

func TestDirSourceFileHasNoChildren(t *testing.T) {
	root := makeTree(t, "file.txt")
	src, _ := NewDirSource(root)
	if n, err := src.ChildCount(visindex.Path{0}); err != nil || n != 0 {
		t.Errorf("expected file to have 0 children, got %d (%v)", n, err)
	}
	if _, err := src.ChildCount(visindex.Path{3}); err == nil {
		t.Error("expected error for out of range path")
	}
}

func TestNewDirSourceRejectsFiles(t *testing.T) {
	root := makeTree(t, "file.txt")
	if _, err := NewDirSource(filepath.Join(root, "file.txt")); err == nil {
		t.Error("expected error opening a file as a directory source")
	}
}

func TestDirSourcePathOf(t *testing.T) {
	root := makeTree(t, "src/main.go", "README.md")
	src, _ := NewDirSource(root)

	if _, ok := src.PathOf(filepath.Join(root, "src", "main.go")); ok {
		t.Error("expected unlisted directory to report false")
	}
	if _, err := src.ChildCount(visindex.Path{0}); err != nil {
		t.Fatal(err)
	}
	p, ok := src.PathOf(filepath.Join(root, "src", "main.go"))
	if !ok || !p.Equal(visindex.Path{0, 0}) {
		t.Errorf("expected 0/0, got %s (%v)", p, ok)
	}
	if p, ok := src.PathOf(root); !ok || len(p) != 0 {
		t.Errorf("expected root path, got %s (%v)", p, ok)
	}
	if _, ok := src.PathOf(filepath.Dir(root)); ok {
		t.Error("expected path outside the root to report false")
	}
}

func TestDirSourceAddedRemoved(t *testing.T) {
	root := makeTree(t, "src/b.go", "src/d.go", "README.md")
	src, _ := NewDirSource(root)
	ix := visindex.New(src)
	if err := ix.Uncollapse(visindex.Path{0}); err != nil {
		t.Fatalf("Uncollapse: %v", err)
	}

	created := filepath.Join(root, "src", "c.go")
	if err := os.WriteFile(created, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	p, ok := src.Added(created)
	if !ok || !p.Equal(visindex.Path{0, 1}) {
		t.Fatalf("expected Added at 0/1, got %s (%v)", p, ok)
	}
	if err := ix.NotifyItemAdded(p); err != nil {
		t.Fatalf("NotifyItemAdded: %v", err)
	}
	if _, ok := src.Added(created); ok {
		t.Error("expected a second Added of the same entry to report false")
	}

	want := []string{"src", "b.go", "c.go", "d.go", "README.md"}
	if got := titles(t, ix); !equalStrings(got, want) {
		t.Errorf("after add expected %v, got %v", want, got)
	}

	gone := filepath.Join(root, "src", "b.go")
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	p, ok = src.Removed(gone)
	if !ok || !p.Equal(visindex.Path{0, 0}) {
		t.Fatalf("expected Removed at 0/0, got %s (%v)", p, ok)
	}
	if err := ix.NotifyItemRemoved(p); err != nil {
		t.Fatalf("NotifyItemRemoved: %v", err)
	}
	want = []string{"src", "c.go", "d.go", "README.md"}
	if got := titles(t, ix); !equalStrings(got, want) {
		t.Errorf("after remove expected %v, got %v", want, got)
	}
	if _, ok := src.Removed(gone); ok {
		t.Error("expected a second Removed to report false")
	}
}

func TestDirSourceAddedUnderUnlistedParent(t *testing.T) {
	root := makeTree(t, "src/a.go")
	src, _ := NewDirSource(root)
	if _, err := visindex.New(src).Count(); err != nil {
		t.Fatal(err)
	}
	created := filepath.Join(root, "src", "b.go")
	if err := os.WriteFile(created, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := src.Added(created); ok {
		t.Error("expected nothing to notify for an unlisted parent")
	}
}

func TestDirSourceReloadSeesNewEntries(t *testing.T) {
	root := makeTree(t, "a.txt")
	src, _ := NewDirSource(root)
	ix := visindex.New(src)
	if count, _ := ix.Count(); count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := src.Reload(); err != nil {
		t.Fatal(err)
	}
	ix.NotifyDataSetChanged()
	if count, _ := ix.Count(); count != 2 {
		t.Errorf("expected 2 rows after reload, got %d", count)
	}
}

func TestDirSourceSkip(t *testing.T) {
	root := makeTree(t, "keep.txt", "debug.log", ".hidden", "build/out.bin")
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\nbuild/\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := NewDirSource(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{root, true, false},
		{filepath.Join(root, "keep.txt"), false, false},
		{filepath.Join(root, "debug.log"), false, true},
		{filepath.Join(root, ".hidden"), false, true},
		{filepath.Join(root, "build"), true, true},
		{filepath.Join(root, loader.StateDir), true, true},
	}
	for _, tt := range tests {
		if got := src.Skip(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Skip(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
