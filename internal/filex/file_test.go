package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLitePath(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ""},
		{"", ""},
		{"file::memory:?cache=shared", ""},
		{"file:members?mode=memory&cache=shared", ""},
		{"data/members.db", "data/members.db"},
		{"file:data/members.db?_pragma=busy_timeout(5000)", "data/members.db"},
		{"/var/lib/members/members.db", "/var/lib/members/members.db"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, SQLitePath(tt.dsn))
		})
	}
}

func TestEnsureParentDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state", "db", "members.db")

	got, err := EnsureParentDir(path)
	require.NoError(t, err)

	want := filepath.Join(tmp, "state", "db")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		perm := fi.Mode().Perm()
		require.Equal(t, os.FileMode(0o700), perm&0o700)
	}
}

func TestEnsureParentDir_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "members.db")

	first, err := EnsureParentDir(path)
	require.NoError(t, err)

	second, err := EnsureParentDir(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestEnsureParentDir_FailsIfFileBlocksDirectory(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "db"), []byte("x"), 0o660))

	_, err := EnsureParentDir(filepath.Join(tmp, "db", "members.db"))
	require.Error(t, err, "should fail when a file exists with the directory's name")
}
