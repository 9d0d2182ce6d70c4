// Package paths provides path helpers shared by lkt commands.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand expands environment variables, then a leading ~ to the home directory
func Expand(path string) string {
	return ExpandHome(os.ExpandEnv(path))
}

// ExpandHome expands only the ~ prefix to the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	}
	return filepath.Join(usr.HomeDir, path[2:])
}

// Absolute expands path and makes it absolute
func Absolute(path string) (string, error) {
	return filepath.Abs(Expand(path))
}

// EnsureDir creates the parent directory of a file path
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// EnsureDirPath creates the given directory path
func EnsureDirPath(dirPath string) error {
	return os.MkdirAll(dirPath, 0755)
}

// Exists returns true if the path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if the path exists and is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile returns true if the path exists and is a regular file
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RelativeTo returns target relative to base when target lives under base,
// otherwise target unchanged.
func RelativeTo(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return target
	}
	return rel
}

// PrependPath returns pathList with dir in front, unless it is already listed
func PrependPath(pathList, dir string) string {
	if pathList == "" {
		return dir
	}
	for _, entry := range filepath.SplitList(pathList) {
		if entry == dir {
			return pathList
		}
	}
	return dir + string(os.PathListSeparator) + pathList
}
