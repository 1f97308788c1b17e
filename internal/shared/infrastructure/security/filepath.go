// Package security checks file system locations that come from
// configuration before a store is opened at them.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid store path")
	ErrPathEscapes = errors.New("store path escapes its base directory")
)

// forbiddenChars break the SQLite DSN (query and fragment markers) or are
// never part of a legitimate store location.
var forbiddenChars = []string{"?", "#", "\x00", "\n", "\r"}

// CleanPath returns path as a clean absolute path with symlinks resolved
// when the file exists.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	for _, c := range forbiddenChars {
		if strings.Contains(path, c) {
			return "", fmt.Errorf("%w: %q contains forbidden character %q", ErrInvalidPath, path, c)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return resolve(abs)
}

// ConfinePath joins name onto baseDir and fails if the result is not
// inside baseDir. name comes from configuration, so it may try to climb
// out with ".." or an absolute path.
func ConfinePath(baseDir, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q is not a relative name", ErrInvalidPath, name)
	}
	base, err := CleanPath(baseDir)
	if err != nil {
		return "", err
	}
	joined, err := CleanPath(filepath.Join(base, name))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not within %s", ErrPathEscapes, name, baseDir)
	}
	return joined, nil
}

func resolve(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if os.IsNotExist(err) {
		return path, nil
	}
	return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
}
