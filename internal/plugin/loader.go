package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledgerline/ledgerline/internal/logging"
)

// entryPointName is the script a directory extension must provide.
const entryPointName = "init.lua"

// Loader discovers extensions under a single directory. A
// subdirectory containing init.lua is a directory extension named
// after the subdirectory; a top-level *.lua file is a single-file
// extension named after the file stem. Anything else is skipped
// with a warning.
type Loader struct {
	dir string
	log *logging.Logger
}

// NewLoader creates a Loader over the given extensions directory.
func NewLoader(dir string, log *logging.Logger) *Loader {
	return &Loader{dir: dir, log: log.WithComponent("loader")}
}

// Dir returns the extensions directory the loader scans.
func (l *Loader) Dir() string {
	return l.dir
}

// Discover scans the extensions directory and returns descriptors
// sorted by ID. A missing directory yields an empty result, not an
// error. Unreadable or malformed entries are logged and skipped so
// one bad extension never hides the rest.
func (l *Loader) Discover() ([]*Descriptor, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read extensions dir %s: %w", l.dir, err)
	}

	seen := make(map[string]string)
	var found []*Descriptor

	for _, entry := range entries {
		var id, path string

		switch {
		case entry.IsDir():
			id = entry.Name()
			path = filepath.Join(l.dir, id, entryPointName)
			if _, err := os.Stat(path); err != nil {
				l.log.Warn("skipping %s: no %s entry point", id, entryPointName)
				continue
			}
		case strings.HasSuffix(entry.Name(), ".lua"):
			id = strings.TrimSuffix(entry.Name(), ".lua")
			if id == "" {
				l.log.Warn("skipping %s: empty extension id", entry.Name())
				continue
			}
			path = filepath.Join(l.dir, entry.Name())
		default:
			continue
		}

		if prev, dup := seen[id]; dup {
			l.log.Warn("skipping %s: id %q already provided by %s", path, id, prev)
			continue
		}
		seen[id] = path
		found = append(found, &Descriptor{ID: id, Path: path})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found, nil
}
