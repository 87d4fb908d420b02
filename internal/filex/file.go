// Package filex holds small filesystem helpers used while bootstrapping
// file-backed stores.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLitePath extracts the on-disk path from a sqlite DSN. In-memory
// databases yield an empty path.
func SQLitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return p
}

// EnsureParentDir creates the directory that will hold the file at path.
// It returns the absolute directory.
func EnsureParentDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", path, err)
	}

	dir := filepath.Dir(abs)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
