package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls how Open builds a source.
type Options struct {
	ShowHidden bool
	Logger     zerolog.Logger
}

// Open picks a source for path: directories become a DirSource, .yaml,
// .yml and .json files a document MemSource, .db, .sqlite and .sqlite3
// files a SQLSource.
func Open(path string, opts Options) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	var src Source
	switch {
	case info.IsDir():
		src, err = NewDirSource(path, WithHidden(opts.ShowHidden), WithDirLogger(opts.Logger))
	case isDocument(path):
		src, err = OpenDocument(path)
	case isDatabase(path):
		src, err = OpenSQL(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func isDatabase(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}
