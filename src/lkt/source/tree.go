// Package source inspects the Linux source tree under test: its version,
// cleanliness and which upstream commits and Kconfig symbols it carries.
package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/probe"
)

var log *logs.Logger

// SetLogger sets the logger for the source package
func SetLogger(l *logs.Logger) {
	log = l
}

// Tree is an immutable view of one kernel source tree. Version and the
// detected features are computed once when the tree is opened.
type Tree struct {
	Folder  string
	Version probe.LinuxCode

	commits map[string]bool
	configs map[string]bool
	files   map[string]string
}

// Open checks that folder is a clean kernel tree, probes its version and
// detects its features.
func Open(ctx context.Context, e executor.Executor, folder string) (*Tree, error) {
	if err := CheckClean(folder); err != nil {
		return nil, err
	}

	version, err := probe.Linux(ctx, e, folder)
	if err != nil {
		return nil, err
	}

	return New(folder, version)
}

// New detects features of a tree whose version is already known
func New(folder string, version probe.LinuxCode) (*Tree, error) {
	t := &Tree{
		Folder:  folder,
		Version: version,
		commits: make(map[string]bool),
		configs: make(map[string]bool),
		files:   make(map[string]string),
	}
	if err := t.detect(); err != nil {
		return nil, err
	}

	if log != nil {
		log.Debug("Detected source features",
			"folder", folder,
			"version", version.String(),
			"commits", len(t.commits),
			"configs", len(t.configs))
	}
	return t, nil
}

// NewStatic builds a tree with a fixed feature set, without reading
// detection files. Other file queries still go to folder.
func NewStatic(folder string, version probe.LinuxCode, features ...string) *Tree {
	t := &Tree{
		Folder:  folder,
		Version: version,
		commits: make(map[string]bool),
		configs: make(map[string]bool),
		files:   make(map[string]string),
	}
	for _, f := range features {
		if strings.HasPrefix(f, "CONFIG_") {
			t.configs[f] = true
		} else {
			t.commits[f] = true
		}
	}
	return t
}

// CheckClean performs the same test as Kbuild for an in-tree build
func CheckClean(folder string) error {
	if !paths.IsDir(folder) {
		return lkterrors.ErrPathNotFound.WithMessagef("Linux source folder %s does not exist", folder)
	}

	dirty := []string{}
	if paths.IsFile(filepath.Join(folder, ".config")) {
		dirty = append(dirty, ".config")
	}
	if paths.IsDir(filepath.Join(folder, "include", "config")) {
		dirty = append(dirty, "include/config")
	}
	if matches, _ := filepath.Glob(filepath.Join(folder, "arch", "*", "include", "generated")); len(matches) > 0 {
		dirty = append(dirty, "arch/*/include/generated")
	}
	if len(dirty) > 0 {
		return lkterrors.ErrDirtyTree.WithMessagef("Linux source %s is not clean (%s)", folder, strings.Join(dirty, ", "))
	}
	return nil
}

func (t *Tree) detect() error {
	for _, f := range features {
		if f.requires != "" && !t.has(f.requires) {
			continue
		}

		found := false
		if f.exists {
			found = t.Exists(f.file)
		} else {
			text, ok, err := t.read(f.file)
			if err != nil {
				return err
			}
			if ok {
				found = f.re.MatchString(text) != f.absent
			}
		}

		if !found {
			continue
		}
		if f.config {
			t.configs[f.id] = true
		} else {
			t.commits[f.id] = true
		}
	}
	return nil
}

func (t *Tree) has(id string) bool {
	if strings.HasPrefix(id, "CONFIG_") {
		return t.configs[id]
	}
	return t.commits[id]
}

// HasCommit reports whether the tree contains the abbreviated commit
func (t *Tree) HasCommit(id string) bool {
	return t.commits[id]
}

// HasConfig reports whether the tree defines symbol, with or without the
// CONFIG_ prefix.
func (t *Tree) HasConfig(symbol string) bool {
	if !strings.HasPrefix(symbol, "CONFIG_") {
		symbol = "CONFIG_" + symbol
	}
	return t.configs[symbol]
}

// Commits returns the detected commits, sorted
func (t *Tree) Commits() []string {
	return sortedKeys(t.commits)
}

// Configs returns the detected Kconfig symbols, sorted
func (t *Tree) Configs() []string {
	return sortedKeys(t.configs)
}

// Path joins rel onto the tree root
func (t *Tree) Path(rel string) string {
	return filepath.Join(t.Folder, filepath.FromSlash(rel))
}

// Exists reports whether rel exists in the tree
func (t *Tree) Exists(rel string) bool {
	return paths.Exists(t.Path(rel))
}

// IsDir reports whether rel is a directory in the tree
func (t *Tree) IsDir(rel string) bool {
	return paths.IsDir(t.Path(rel))
}

// ReadFile returns the contents of rel; a missing file is an error
func (t *Tree) ReadFile(rel string) (string, error) {
	text, ok, err := t.read(rel)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", lkterrors.ErrSourceRead.WithMessagef("%s does not exist in %s", rel, t.Folder)
	}
	return text, nil
}

// Contains reports whether rel exists and contains text
func (t *Tree) Contains(rel, text string) bool {
	content, ok, err := t.read(rel)
	return err == nil && ok && strings.Contains(content, text)
}

// Matches reports whether rel exists and matches re
func (t *Tree) Matches(rel string, re *regexp.Regexp) bool {
	content, ok, err := t.read(rel)
	return err == nil && ok && re.MatchString(content)
}

// ContainsStripped compares with all whitespace removed from the file,
// for matching Kconfig definitions regardless of indentation.
func (t *Tree) ContainsStripped(rel, text string) bool {
	content, ok, err := t.read(rel)
	if err != nil || !ok {
		return false
	}
	return strings.Contains(strings.Join(strings.Fields(content), ""), text)
}

func (t *Tree) read(rel string) (string, bool, error) {
	if text, ok := t.files[rel]; ok {
		return text, true, nil
	}
	data, err := os.ReadFile(t.Path(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, lkterrors.ErrSourceRead.WithMessagef("failed to read %s", rel).WithCause(err)
	}
	t.files[rel] = string(data)
	return t.files[rel], true, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
