package kconfig

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bitswalk/lkt/src/lkt/executor"
)

const sampleConfig = `#
# Automatically generated file; DO NOT EDIT.
#
CONFIG_CC_IS_CLANG=y
CONFIG_LTO_NONE=y
# CONFIG_LTO_CLANG_THIN is not set
CONFIG_EXTRA_FIRMWARE=""
CONFIG_SYSTEM_TRUSTED_KEYS="debian/certs/debian-uefi-certs.pem"
CONFIG_ANDROID_BINDER_IPC=m
CONFIG_BASE_SMALL=0
CONFIG_NR_CPUS=64
`

func TestParseOption(t *testing.T) {
	tests := []struct {
		in      string
		want    Option
		action  Action
		wantErr bool
	}{
		{"CONFIG_WERROR=n", Option{"WERROR", "n"}, ActionDisable, false},
		{"LTO_CLANG_THIN=y", Option{"LTO_CLANG_THIN", "y"}, ActionEnable, false},
		{"CONFIG_KVM=m", Option{"KVM", "m"}, ActionModule, false},
		{`CONFIG_EXTRA_FIRMWARE=""`, Option{"EXTRA_FIRMWARE", `""`}, ActionSetString, false},
		{"CONFIG_ARCH_FORCE_MAX_ORDER=8", Option{"ARCH_FORCE_MAX_ORDER", "8"}, ActionSetValue, false},
		{"CONFIG_FOO=undef", Option{"FOO", "undef"}, ActionUndefine, false},
		{"CONFIG_WERROR", Option{}, 0, true},
		{"CONFIG_BAD-NAME=y", Option{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOption(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOption(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseOption(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.Action() != tt.action {
				t.Errorf("Action() = %v, want %v", got.Action(), tt.action)
			}
		})
	}
}

func TestWithChoicePartners(t *testing.T) {
	tests := []struct {
		name string
		in   []Option
		want []string
	}{
		{
			name: "lto",
			in:   MustParse("CONFIG_LTO_CLANG_THIN=y"),
			want: []string{"CONFIG_LTO_CLANG_THIN=y", "CONFIG_LTO_NONE=n"},
		},
		{
			name: "big endian",
			in:   MustParse("CONFIG_CPU_BIG_ENDIAN=y"),
			want: []string{"CONFIG_CPU_BIG_ENDIAN=y", "CONFIG_CPU_LITTLE_ENDIAN=n"},
		},
		{
			name: "already present",
			in:   MustParse("CONFIG_CPU_LITTLE_ENDIAN=y", "CONFIG_CPU_BIG_ENDIAN=n"),
			want: []string{"CONFIG_CPU_LITTLE_ENDIAN=y", "CONFIG_CPU_BIG_ENDIAN=n"},
		},
		{
			name: "unrelated",
			in:   MustParse("CONFIG_WERROR=n"),
			want: []string{"CONFIG_WERROR=n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Strings(WithChoicePartners(tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("WithChoicePartners() = %v, want %v", got, tt.want)
			}
		})
	}
}
func mustParse(t *testing.T, data string) *File {
	t.Helper()
	f, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestFile_State(t *testing.T) {
	f := mustParse(t, sampleConfig)

	tests := []struct {
		name    string
		state   string
		isSet   bool
		modular bool
		defined bool
	}{
		{"CC_IS_CLANG", "y", true, false, true},
		{"LTO_CLANG_THIN", "n", false, false, false},
		{"EXTRA_FIRMWARE", "", false, false, true},
		{"SYSTEM_TRUSTED_KEYS", "debian/certs/debian-uefi-certs.pem", true, false, true},
		{"ANDROID_BINDER_IPC", "m", true, true, true},
		{"BASE_SMALL", "0", true, false, true},
		{"NOT_THERE", "undef", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.State(tt.name); got != tt.state {
				t.Errorf("State(%s) = %q, want %q", tt.name, got, tt.state)
			}
			if got := f.IsSet(tt.name); got != tt.isSet {
				t.Errorf("IsSet(%s) = %v, want %v", tt.name, got, tt.isSet)
			}
			if got := f.IsModular(tt.name); got != tt.modular {
				t.Errorf("IsModular(%s) = %v, want %v", tt.name, got, tt.modular)
			}
			if got := f.Defined(tt.name); got != tt.defined {
				t.Errorf("Defined(%s) = %v, want %v", tt.name, got, tt.defined)
			}
		})
	}
}

func TestParse_OverlongLine(t *testing.T) {
	data := "CONFIG_CC_IS_CLANG=y\nCONFIG_CMDLINE=\"" + strings.Repeat("a", maxLine) + "\"\n"
	if _, err := Parse([]byte(data)); !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("Parse() error = %v, want bufio.ErrTooLong", err)
	}

	path := filepath.Join(t.TempDir(), ".config")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("ParseFile() error = %v, want bufio.ErrTooLong", err)
	}
}

func TestFile_SerializeRoundTrip(t *testing.T) {
	f := mustParse(t, sampleConfig)
	if got := string(f.Serialize()); got != sampleConfig {
		t.Errorf("Serialize() changed an unedited file:\n%s", got)
	}
}

func TestFile_ApplyIdempotent(t *testing.T) {
	opts := WithChoicePartners(MustParse(
		"CONFIG_LTO_CLANG_THIN=y",
		"CONFIG_ANDROID_BINDER_IPC=y",
		"CONFIG_WERROR=n",
		`CONFIG_EXTRA_FIRMWARE="foo.bin"`,
		"CONFIG_NR_CPUS=undef",
	))

	once := mustParse(t, sampleConfig)
	once.Apply(opts)
	first := once.Serialize()

	twice := mustParse(t, string(first))
	twice.Apply(opts)
	second := twice.Serialize()

	if !bytes.Equal(first, second) {
		t.Errorf("applying twice differs from applying once:\n--- once\n%s\n--- twice\n%s", first, second)
	}
	if once.Value("LTO_NONE") != No || once.Value("LTO_CLANG_THIN") != Yes {
		t.Errorf("choice not switched: LTO_NONE=%s LTO_CLANG_THIN=%s", once.Value("LTO_NONE"), once.Value("LTO_CLANG_THIN"))
	}
	if once.Value("NR_CPUS") != Undef {
		t.Errorf("NR_CPUS should be undefined, got %s", once.Value("NR_CPUS"))
	}
	if bytes.Count(first, []byte("CONFIG_LTO_NONE")) != 1 {
		t.Errorf("duplicate LTO_NONE entries:\n%s", first)
	}
}

func TestFile_Missing(t *testing.T) {
	f := mustParse(t, sampleConfig)
	requested := MustParse(
		"CONFIG_CC_IS_CLANG=y",        // present
		"CONFIG_LTO_CLANG_THIN=n",     // "is not set"
		"CONFIG_INVISIBLE=n",          // absent, counts as n
		"CONFIG_LTO_NONE=n",           // present as y
		"CONFIG_KCFI=y",               // absent
		"CONFIG_ANDROID_BINDER_IPC=y", // present as m
	)

	got := Strings(f.Missing(requested))
	want := []string{"CONFIG_LTO_NONE=n", "CONFIG_KCFI=y", "CONFIG_ANDROID_BINDER_IPC=y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}
}

func TestFilePatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".config")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	p := FilePatcher{}
	opts := MustParse("CONFIG_ANDROID_BINDER_IPC=y", "CONFIG_BPF_PRELOAD=n")
	for i := 0; i < 2; i++ {
		if err := p.Apply(context.Background(), path, opts); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}

	f, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Value("ANDROID_BINDER_IPC") != Yes {
		t.Errorf("ANDROID_BINDER_IPC = %s, want y", f.Value("ANDROID_BINDER_IPC"))
	}
	if f.Value("BPF_PRELOAD") != No {
		t.Errorf("BPF_PRELOAD = %s, want n", f.Value("BPF_PRELOAD"))
	}
}

func TestFilePatcher_MissingFile(t *testing.T) {
	err := FilePatcher{}.Apply(context.Background(), filepath.Join(t.TempDir(), ".config"), MustParse("CONFIG_X=y"))
	if err == nil {
		t.Error("expected an error for a missing .config")
	}
}

func TestScriptsConfig_Args(t *testing.T) {
	s := &ScriptsConfig{}
	got := s.Args("out/.config", MustParse(
		"CONFIG_A=y", "CONFIG_B=n", "CONFIG_C=m", `CONFIG_D="x y"`, "CONFIG_E=0x10", "CONFIG_F=undef",
	))
	want := []string{
		"--file", "out/.config",
		"-e", "A", "-d", "B", "-m", "C",
		"--set-str", "D", "x y",
		"--set-val", "E", "0x10",
		"-u", "F",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestNewPatcher(t *testing.T) {
	src := t.TempDir()
	if _, ok := NewPatcher(executor.NewFake(), src).(FilePatcher); !ok {
		t.Error("a tree without scripts/config should use the in-process patcher")
	}

	if err := os.MkdirAll(filepath.Join(src, "scripts"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "scripts", "config"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	p := NewPatcher(executor.NewFake(), src)
	sc, ok := p.(*ScriptsConfig)
	if !ok {
		t.Fatalf("NewPatcher() = %T, want *ScriptsConfig", p)
	}

	cfg := filepath.Join(t.TempDir(), ".config")
	if err := os.WriteFile(cfg, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}
	if err := sc.Apply(context.Background(), cfg, MustParse("CONFIG_WERROR=n")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	fake := sc.Exec.(*executor.Fake)
	if n := len(fake.CallsMatching(sc.Script + " --file " + cfg + " -d WERROR")); n != 1 {
		t.Errorf("scripts/config calls = %d, want 1", n)
	}
}
