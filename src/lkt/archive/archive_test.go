package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/storage"
)

func TestStoreAndOpen(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	a := &Archiver{Backend: backend}

	logDir := t.TempDir()
	build := strings.Repeat("  CC      kernel/fork.o\n", 2000)
	files := map[string]string{
		"info.log":             "clang version: 16.0.6\n",
		"x86_64-defconfig.log": build,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(logDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(logDir, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	prefix := Prefix("1234")
	stored, err := a.Store(ctx, prefix, logDir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"info.log", "x86_64-defconfig.log"}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("Store = %v, want %v", stored, want)
	}

	names, err := a.Names(ctx, prefix)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}

	objects, _ := backend.List(ctx, prefix)
	for _, o := range objects {
		if strings.HasSuffix(o.Key, "x86_64-defconfig.log.xz") && o.Size >= int64(len(build)) {
			t.Errorf("log was not compressed: %d >= %d", o.Size, len(build))
		}
	}

	rc, err := a.Open(ctx, prefix, "x86_64-defconfig.log")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != build {
		t.Error("decompressed log differs from the original")
	}
}

func TestOpenRejectsPaths(t *testing.T) {
	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	a := &Archiver{Backend: backend}

	for _, name := range []string{"", "../info.log", "a/b.log", ".."} {
		if _, err := a.Open(context.Background(), Prefix("1"), name); !lkterrors.Is(err, lkterrors.ErrObjectNotFound) {
			t.Errorf("Open(%q): expected ErrObjectNotFound, got %v", name, err)
		}
	}
	if _, err := a.Open(context.Background(), Prefix("1"), "missing.log"); !lkterrors.Is(err, lkterrors.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound for a missing log, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: base})
	if err != nil {
		t.Fatal(err)
	}
	a := &Archiver{Backend: backend}

	logDir := t.TempDir()
	for _, name := range []string{"info.log", "arm64-defconfig.log"} {
		if err := os.WriteFile(filepath.Join(logDir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"1", "12"} {
		if _, err := a.Store(ctx, Prefix(id), logDir); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := a.Remove(ctx, Prefix("1"))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("Remove = %d, want 2", removed)
	}
	if names, _ := a.Names(ctx, Prefix("1")); len(names) != 0 {
		t.Errorf("logs left after Remove: %v", names)
	}
	if _, err := os.Stat(filepath.Join(base, "runs", "1")); !os.IsNotExist(err) {
		t.Error("expected the run folder to be removed")
	}
	if names, _ := a.Names(ctx, Prefix("12")); len(names) != 2 {
		t.Errorf("Remove of runs/1 touched runs/12: %v", names)
	}

	if removed, err := a.Remove(ctx, Prefix("1")); err != nil || removed != 0 {
		t.Errorf("second Remove = %d, %v", removed, err)
	}
}
