package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/executor"
)

func TestParseVariables(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{"none", nil, map[string]string{}, false},
		{"simple", []string{"KCFLAGS=-Werror"}, map[string]string{"KCFLAGS": "-Werror"}, false},
		{"empty value", []string{"LOCALVERSION="}, map[string]string{"LOCALVERSION": ""}, false},
		{"value with equals", []string{"KCPPFLAGS=-DFOO=1"}, map[string]string{"KCPPFLAGS": "-DFOO=1"}, false},
		{"last wins", []string{"V=0", "V=1"}, map[string]string{"V": "1"}, false},
		{"no equals", []string{"defconfig"}, nil, true},
		{"empty name", []string{"=1"}, nil, true},
		{"bad name", []string{"1ABC=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariables(tt.args)
			if tt.wantErr {
				if !lkterrors.Is(err, lkterrors.ErrInvalidVariable) {
					t.Fatalf("expected ErrInvalidVariable, got %v", err)
				}
				if code := lkterrors.GetExitCode(err); code != lkterrors.ExitUsage {
					t.Errorf("exit code = %d, want %d", code, lkterrors.ExitUsage)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseVariables(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestAddToPath(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	withBin := t.TempDir()
	if err := os.Mkdir(filepath.Join(withBin, "bin"), 0755); err != nil {
		t.Fatal(err)
	}
	withoutBin := t.TempDir()

	if err := addToPath(""); err != nil {
		t.Errorf("empty prefix: %v", err)
	}
	if err := addToPath(filepath.Join(withoutBin, "missing")); !lkterrors.Is(err, lkterrors.ErrPathNotFound) {
		t.Errorf("missing prefix: got %v", err)
	}
	if err := addToPath(withoutBin); !lkterrors.Is(err, lkterrors.ErrPrefixNoBin) {
		t.Errorf("prefix without bin: got %v", err)
	}

	if err := addToPath(withBin); err != nil {
		t.Fatal(err)
	}
	if err := addToPath(withBin); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(withBin, "bin") + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Errorf("PATH = %q, want %q", got, want)
	}
}

func TestUpdateBootUtils(t *testing.T) {
	ctx := context.Background()
	repo := "https://github.com/ClangBuiltLinux/boot-utils"

	t.Run("clone when missing", func(t *testing.T) {
		fake := executor.NewFake()
		folder := filepath.Join(t.TempDir(), "src", "boot-utils")
		if err := updateBootUtils(ctx, fake, repo, folder, &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		if n := len(fake.CallsMatching("git clone " + repo)); n != 1 {
			t.Errorf("clone ran %d times", n)
		}
		if n := len(fake.CallsMatching("git -C " + folder + " pull --no-edit")); n != 1 {
			t.Errorf("pull ran %d times", n)
		}
	})

	t.Run("pull only when present", func(t *testing.T) {
		fake := executor.NewFake()
		folder := t.TempDir()
		if err := updateBootUtils(ctx, fake, repo, folder, &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		if n := len(fake.CallsMatching("git clone")); n != 0 {
			t.Errorf("clone ran %d times", n)
		}
	})

	t.Run("failure", func(t *testing.T) {
		fake := executor.NewFake().On("git", executor.Result{ExitCode: 128})
		err := updateBootUtils(ctx, fake, repo, t.TempDir(), &bytes.Buffer{})
		if !lkterrors.Is(err, lkterrors.ErrBootUtilsFetch) {
			t.Fatalf("expected ErrBootUtilsFetch, got %v", err)
		}
		if code := lkterrors.GetExitCode(err); code != lkterrors.ExitSetup {
			t.Errorf("exit code = %d", code)
		}
	})
}

func TestBuildToolchain(t *testing.T) {
	ctx := context.Background()
	script := filepath.Join(t.TempDir(), "build-llvm.py")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	fake := executor.NewFake()
	if err := buildToolchain(ctx, fake, script, "/opt/llvm", &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	calls := fake.CallsMatching(script)
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].Args, []string{"--install-folder", "/opt/llvm"}) {
		t.Errorf("unexpected calls %+v", calls)
	}

	failing := executor.NewFake().On(script, executor.Result{ExitCode: 1})
	err := buildToolchain(ctx, failing, script, "", &bytes.Buffer{})
	if code := lkterrors.GetExitCode(err); code != lkterrors.ExitToolchain {
		t.Errorf("exit code = %d, want %d (%v)", code, lkterrors.ExitToolchain, err)
	}

	err = buildToolchain(ctx, fake, script+".missing", "", &bytes.Buffer{})
	if !lkterrors.Is(err, lkterrors.ErrPathNotFound) {
		t.Errorf("missing script: got %v", err)
	}
}

func TestMakeVariables(t *testing.T) {
	tests := []struct {
		name   string
		tools  []string
		ccache bool
		want   map[string]string
	}{
		{"nothing installed", nil, true, map[string]string{}},
		{"ccache not requested", []string{"ccache"}, false, map[string]string{}},
		{"ccache", []string{"ccache"}, true, map[string]string{"CC": "ccache clang", "HOSTCC": "ccache clang"}},
		{"compressors", []string{"pbzip2", "pigz"}, false, map[string]string{"KBZIP2": "pbzip2", "KGZIP": "pigz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := executor.NewFake().AddTool(tt.tools...)
			if got := makeVariables(fake, tt.ccache); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("makeVariables = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHostMachine(t *testing.T) {
	got, err := hostMachine(context.Background(), executor.NewFake())
	if err != nil {
		t.Fatal(err)
	}
	if got == "" || strings.ContainsRune(got, 0) {
		t.Errorf("hostMachine = %q", got)
	}
}
