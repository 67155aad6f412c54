package filex

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSubdDir_CreatesDirectory(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureSubdDir(tmp, "cached")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmp, "cached"), got)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureSubdDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()

	first, err := EnsureSubdDir(tmp, "managed")
	require.NoError(t, err)
	second, err := EnsureSubdDir(tmp, "managed")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureSubdDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "managed"), []byte("x"), 0o660))

	_, err := EnsureSubdDir(tmp, "managed")
	require.Error(t, err)
}

func TestExistsAndRemoveIfExists(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "a.db")

	assert.False(t, Exists(p))
	assert.False(t, Exists(tmp), "directories are not files")

	require.NoError(t, os.WriteFile(p, []byte("data"), 0o660))
	assert.True(t, Exists(p))

	require.NoError(t, RemoveIfExists(p))
	assert.False(t, Exists(p))

	// second removal is a no-op
	require.NoError(t, RemoveIfExists(p))
}

func TestWriteAtomic_ReplacesDestination(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "u1.cached.db")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o660))

	err := WriteAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader("new content"))
		return err
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))
	assertNoTempFiles(t, tmp)
}

func TestWriteAtomic_FailureLeavesDestinationUntouched(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "u1.cached.db")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o660))

	boom := errors.New("stream broke")
	err := WriteAtomic(dst, func(w io.Writer) error {
		_, _ = w.Write([]byte("half"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assertNoTempFiles(t, tmp)
}

func TestWriteAtomic_FailureWithMissingDestinationLeavesNothing(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "u2.cached.db")

	err := WriteAtomic(dst, func(w io.Writer) error { return errors.New("nope") })
	require.Error(t, err)
	assert.False(t, Exists(dst))
	assertNoTempFiles(t, tmp)
}

func TestTempPath_IsUniqueSibling(t *testing.T) {
	dst := filepath.Join("/data", "cached", "u.db")
	a, b := TempPath(dst), TempPath(dst)

	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Dir(dst), filepath.Dir(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), ".u.db."))
	assert.True(t, strings.HasSuffix(a, ".tmp"))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}
