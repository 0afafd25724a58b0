package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkcipher/pkg/contract"
)

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "tmp file not cleaned: %s", e.Name())
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), "in/out.txt", bytes.NewBufferString("data")))
	// 默认扁平化：仅保留文件名
	b, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
	assertNoTemp(t, dir)
}

func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), "out.txt", bytes.NewBufferString("v1")))
	require.NoError(t, w.Write(context.Background(), "out.txt", bytes.NewBufferString("v2")))
	b, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
	assertNoTemp(t, dir)
}

func TestWritePathInvalid(t *testing.T) {
	flat := false
	w, err := New(&Options{OutputDir: t.TempDir(), Flat: &flat})
	require.NoError(t, err)
	err = w.Write(context.Background(), "../bad", bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
}

func TestWriteNonAtomicNested(t *testing.T) {
	dir := t.TempDir()
	flat, atomic := false, false
	w, err := New(&Options{OutputDir: dir, Flat: &flat, Atomic: &atomic})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), "sub/out.txt", bytes.NewBufferString("long")))
	require.NoError(t, w.Write(context.Background(), "sub/out.txt", bytes.NewBufferString("v")))
	b, err := os.ReadFile(filepath.Join(dir, "sub", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(b), "覆盖写需截断")
}

// 单一输出文件：首个产物替换旧内容，后续产物追加
func TestWriteOutputFile(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		dir := t.TempDir()
		out := filepath.Join(dir, "nested", "result.txt")
		require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
		require.NoError(t, os.WriteFile(out, []byte("stale\n"), 0o644))

		a := atomic
		w, err := New(&Options{OutputFile: out, Atomic: &a})
		require.NoError(t, err)
		require.NoError(t, w.Write(context.Background(), "a.txt", bytes.NewBufferString("KHOOR\n")))
		require.NoError(t, w.Write(context.Background(), "b.txt", bytes.NewBufferString("ZRUOG\n")))
		b, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "KHOOR\nZRUOG\n", string(b), "atomic=%v", atomic)
		assertNoTemp(t, filepath.Dir(out))
	}
}

func TestWriteCtxCancel(t *testing.T) {
	w, err := New(&Options{OutputDir: t.TempDir()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.Write(ctx, "a.txt", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, contract.ErrConfiguration)
	_, err = New(&Options{OutputDir: "  "})
	assert.ErrorIs(t, err, contract.ErrConfiguration)
	_, err = New(&Options{OutputDir: "a", OutputFile: "b"})
	assert.ErrorIs(t, err, contract.ErrConfiguration)
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	require.Error(t, w.Write(context.Background(), "a.txt", errReader{}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReaderWithCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithCtx(ctx, strings.NewReader("data"))
	cancel()
	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
