package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StateStore persists extension enabled flags as a flat JSON object
// mapping extension id to boolean.
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by the given file path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the backing file path.
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the persisted flags. A missing file yields an empty
// map. A file that exists but is not valid JSON is an error; the
// caller decides whether to start clean.
func (s *StateStore) Load() (map[string]bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("read extension state %s: %w", s.path, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("extension state %s: invalid json", s.path)
	}

	flags := make(map[string]bool)
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		flags[key.String()] = value.Bool()
		return true
	})
	return flags, nil
}

// Save writes the flags, ids in sorted order so the file diffs
// cleanly. The write goes through a temp file in the same directory
// plus a rename, so a crash mid-write never leaves a truncated state
// file behind.
func (s *StateStore) Save(flags map[string]bool) error {
	ids := make([]string, 0, len(flags))
	for id := range flags {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := "{}"
	var err error
	for _, id := range ids {
		out, err = sjson.Set(out, escapePath(id), flags[id])
		if err != nil {
			return fmt.Errorf("encode extension state: %w", err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".extensions-*.json")
	if err != nil {
		return fmt.Errorf("write extension state %s: %w", s.path, err)
	}
	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write extension state %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write extension state %s: %w", s.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write extension state %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write extension state %s: %w", s.path, err)
	}
	return nil
}

// escapePath quotes path metacharacters so an extension id like
// "net.worth" stays one key instead of becoming a nested object.
// The backslash comes first so it is escaped before it can quote
// anything else.
func escapePath(id string) string {
	return pathEscaper.Replace(id)
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)
