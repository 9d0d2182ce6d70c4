// Package archive stores a run's log folder as xz-compressed objects and
// reads them back decompressed.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/lkt/storage"
)

var log *logs.Logger

// SetLogger sets the logger for the archive package
func SetLogger(l *logs.Logger) {
	log = l
}

const (
	suffix      = ".xz"
	contentType = "application/x-xz"
)

// Prefix is where the logs of a run are stored
func Prefix(runID string) string {
	return "runs/" + runID
}

// Archiver moves run logs in and out of a storage backend
type Archiver struct {
	Backend storage.Backend
}

// Store compresses every regular file of logDir into prefix and returns
// the stored log names, sorted.
func (a *Archiver) Store(ctx context.Context, prefix, logDir string) ([]string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log folder %s: %w", logDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return names, err
		}
		if err := a.storeFile(ctx, prefix, filepath.Join(logDir, e.Name())); err != nil {
			return names, err
		}
		names = append(names, e.Name())
	}

	if log != nil {
		log.Info("Archived logs", "location", a.Backend.Location(), "prefix", prefix, "files", len(names))
	}
	return names, nil
}

func (a *Archiver) storeFile(ctx context.Context, prefix, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}

	key := objectKey(prefix, filepath.Base(path))
	return a.Backend.Upload(ctx, key, &buf, int64(buf.Len()), contentType)
}

// Names lists the log names stored under prefix
func (a *Archiver) Names(ctx context.Context, prefix string) ([]string, error) {
	objects, err := a.Backend.List(ctx, prefix+"/")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, o := range objects {
		name := strings.TrimPrefix(o.Key, prefix+"/")
		if strings.HasSuffix(name, suffix) && !strings.Contains(name, "/") {
			names = append(names, strings.TrimSuffix(name, suffix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open returns the decompressed contents of one stored log
func (a *Archiver) Open(ctx context.Context, prefix, name string) (io.ReadCloser, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return nil, lkterrors.ErrObjectNotFound.WithMessagef("invalid log name %q", name)
	}

	rc, _, err := a.Backend.Download(ctx, objectKey(prefix, name))
	if err != nil {
		return nil, err
	}
	r, err := xz.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	return &readCloser{Reader: r, closer: rc}, nil
}

// Remove deletes every object stored under prefix and returns how many
// were deleted
func (a *Archiver) Remove(ctx context.Context, prefix string) (int, error) {
	objects, err := a.Backend.List(ctx, prefix+"/")
	if err != nil {
		return 0, err
	}
	for i, o := range objects {
		if err := a.Backend.Delete(ctx, o.Key); err != nil {
			return i, err
		}
	}
	return len(objects), nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error {
	return r.closer.Close()
}

func objectKey(prefix, name string) string {
	return prefix + "/" + name + suffix
}
