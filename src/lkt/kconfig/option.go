// Package kconfig reads and edits kernel .config files.
//
// Option names never carry the CONFIG_ prefix inside this package; it is
// added back when an option is rendered for a log line or a file.
package kconfig

import (
	"strings"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
)

// Values understood by scripts/config --state
const (
	Yes   = "y"
	Mod   = "m"
	No    = "n"
	Undef = "undef"

	prefix = "CONFIG_"
)

// Action is the edit an option performs on a .config
type Action int

const (
	ActionEnable Action = iota
	ActionDisable
	ActionModule
	ActionSetValue
	ActionSetString
	ActionUndefine
)

func (a Action) String() string {
	switch a {
	case ActionEnable:
		return "enable"
	case ActionDisable:
		return "disable"
	case ActionModule:
		return "module"
	case ActionSetValue:
		return "set-val"
	case ActionSetString:
		return "set-str"
	case ActionUndefine:
		return "undefine"
	default:
		return "unknown"
	}
}

// Option is one requested CONFIG_<Name>=<Value> setting. String values
// keep their surrounding double quotes, exactly as they appear in .config.
type Option struct {
	Name  string
	Value string
}

// Opt builds an option, accepting names with or without the CONFIG_ prefix
func Opt(name, value string) Option {
	return Option{Name: strings.TrimPrefix(name, prefix), Value: value}
}

// ParseOption parses "CONFIG_FOO=y" or "FOO=y"
func ParseOption(s string) (Option, error) {
	name, value, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return Option{}, lkterrors.ErrInvalidOption.WithMessagef("%s does not contain '='", s)
	}
	name = strings.TrimPrefix(name, prefix)
	if !validName(name) {
		return Option{}, lkterrors.ErrInvalidOption.WithMessagef("invalid config symbol in %q", s)
	}
	return Option{Name: name, Value: value}, nil
}

// MustParse parses a list of options and panics on error; only used for
// the static tables in the arch package.
func MustParse(items ...string) []Option {
	opts := make([]Option, 0, len(items))
	for _, item := range items {
		opt, err := ParseOption(item)
		if err != nil {
			panic(err)
		}
		opts = append(opts, opt)
	}
	return opts
}

// Symbol returns the name with its CONFIG_ prefix
func (o Option) Symbol() string {
	return prefix + o.Name
}

// String renders the option as CONFIG_FOO=value
func (o Option) String() string {
	return o.Symbol() + "=" + o.Value
}

// Action derives the scripts/config action for the value
func (o Option) Action() Action {
	switch {
	case o.Value == Yes:
		return ActionEnable
	case o.Value == No:
		return ActionDisable
	case o.Value == Mod:
		return ActionModule
	case o.Value == Undef:
		return ActionUndefine
	case strings.HasPrefix(o.Value, `"`):
		return ActionSetString
	default:
		return ActionSetValue
	}
}

// Unquoted returns a string value without its surrounding quotes
func (o Option) Unquoted() string {
	return unquote(o.Value)
}

// choicePartners lists the defaults Kconfig would otherwise warn about
// when another member of the same choice is selected.
var choicePartners = map[string][]Option{
	"LTO_CLANG_THIN=y":    {{Name: "LTO_NONE", Value: No}},
	"CPU_BIG_ENDIAN=y":    {{Name: "CPU_LITTLE_ENDIAN", Value: No}},
	"CPU_LITTLE_ENDIAN=y": {{Name: "CPU_BIG_ENDIAN", Value: No}},
}

// WithChoicePartners appends the choice defaults that must be disabled for
// the requested options to take effect. Options already present are not
// added twice.
func WithChoicePartners(opts []Option) []Option {
	out := append([]Option(nil), opts...)
	seen := make(map[Option]bool, len(opts))
	for _, o := range opts {
		seen[o] = true
	}
	for _, o := range opts {
		for _, partner := range choicePartners[o.Name+"="+o.Value] {
			if !seen[partner] {
				seen[partner] = true
				out = append(out, partner)
			}
		}
	}
	return out
}

// Strings renders options as CONFIG_FOO=value lines
func Strings(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.String()
	}
	return out
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}
	return strings.ReplaceAll(v, `\"`, `"`)
}
