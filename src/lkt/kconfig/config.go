package kconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
)

// File is a parsed .config. Entries keep their original order and the
// comment lines preceding them so a rewrite only touches edited lines.
type File struct {
	Entries  []*Entry
	byName   map[string]*Entry
	trailing []string
}

// Entry is one CONFIG_ line; Value is No for "# CONFIG_X is not set"
type Entry struct {
	Name     string
	Value    string
	comments []string
}

var (
	setRe   = regexp.MustCompile(`^` + prefix + `([A-Za-z0-9_]+)=(.*)$`)
	unsetRe = regexp.MustCompile(`^# ` + prefix + `([A-Za-z0-9_]+) is not set$`)
)

// maxLine bounds a single .config line; long CONFIG_CMDLINE or firmware
// lists stay far below it
const maxLine = 1024 * 1024

// Parse parses .config contents
func Parse(data []byte) (*File, error) {
	f := &File{byName: make(map[string]*Entry)}
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	for s.Scan() {
		line := s.Text()
		trimmed := bytes.TrimSpace([]byte(line))
		if m := setRe.FindSubmatch(trimmed); m != nil {
			f.set(string(m[1]), string(m[2]), true)
		} else if m := unsetRe.FindSubmatch(trimmed); m != nil {
			f.set(string(m[1]), No, true)
		} else {
			f.trailing = append(f.trailing, line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return f, nil
}

// ParseFile reads and parses the .config at path
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Value returns the raw value for name, No when it is explicitly not set
// and Undef when the symbol does not appear at all.
func (f *File) Value(name string) string {
	e := f.byName[name]
	if e == nil {
		return Undef
	}
	return e.Value
}

// State mirrors "scripts/config --state": like Value but with string
// quotes removed.
func (f *File) State(name string) string {
	v := f.Value(name)
	if v == Undef || v == No {
		return v
	}
	return unquote(v)
}

// IsSet reports whether name has a value other than empty, n or undefined
func (f *File) IsSet(name string) bool {
	switch f.State(name) {
	case "", No, Undef:
		return false
	}
	return true
}

// IsModular reports whether name is built as a module
func (f *File) IsModular(name string) bool {
	return f.Value(name) == Mod
}

// Defined reports whether name appears with an assigned value
// (a "# CONFIG_X is not set" line does not count)
func (f *File) Defined(name string) bool {
	v := f.Value(name)
	return v != Undef && v != No
}

// Set changes a value or appends the entry when it is not present yet
func (f *File) Set(name, value string) {
	f.set(name, value, false)
}

// set attaches pending comment lines to the entry while parsing
func (f *File) set(name, value string, parsing bool) {
	e := f.byName[name]
	if e == nil {
		e = &Entry{Name: name}
		f.byName[name] = e
		f.Entries = append(f.Entries, e)
	}
	e.Value = value
	if parsing {
		e.comments = append(e.comments, f.trailing...)
		f.trailing = nil
	}
}

// Undefine removes name from the file entirely
func (f *File) Undefine(name string) {
	e := f.byName[name]
	if e == nil {
		return
	}
	delete(f.byName, name)
	for i, cur := range f.Entries {
		if cur != e {
			continue
		}
		f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
		// keep the section comments that preceded the removed line
		if i < len(f.Entries) {
			f.Entries[i].comments = append(e.comments, f.Entries[i].comments...)
		} else {
			f.trailing = append(e.comments, f.trailing...)
		}
		break
	}
}

// Apply performs every option's action in order
func (f *File) Apply(opts []Option) {
	for _, o := range opts {
		if o.Action() == ActionUndefine {
			f.Undefine(o.Name)
			continue
		}
		f.Set(o.Name, o.Value)
	}
}

// Serialize renders the file back into .config syntax
func (f *File) Serialize() []byte {
	var buf bytes.Buffer
	for _, e := range f.Entries {
		for _, c := range e.comments {
			fmt.Fprintf(&buf, "%s\n", c)
		}
		if e.Value == No {
			fmt.Fprintf(&buf, "# %s%s is not set\n", prefix, e.Name)
		} else {
			fmt.Fprintf(&buf, "%s%s=%s\n", prefix, e.Name, e.Value)
		}
	}
	for _, c := range f.trailing {
		fmt.Fprintf(&buf, "%s\n", c)
	}
	return buf.Bytes()
}

// WriteFile serializes the file to path
func (f *File) WriteFile(path string) error {
	if err := os.WriteFile(path, f.Serialize(), 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Missing returns the requested options the final configuration does not
// honour. A requested "=n" only counts as missing when the symbol ended
// up with some other value, since invisible symbols are simply absent.
func (f *File) Missing(requested []Option) []Option {
	var missing []Option
	for _, o := range requested {
		if o.Action() == ActionUndefine {
			continue
		}
		if o.Value == No {
			if f.Defined(o.Name) {
				missing = append(missing, o)
			}
			continue
		}
		if f.Value(o.Name) != o.Value {
			missing = append(missing, o)
		}
	}
	return missing
}
