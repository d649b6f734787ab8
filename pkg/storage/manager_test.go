package storage

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	errs "dyfav/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAndExists(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)

	assert.False(t, m.Exists("Hi_There", "A.mp4"))
	require.NoError(t, m.WriteFile("Hi_There", "A.mp4", []byte("video")))

	assert.True(t, m.Exists("Hi_There", "A.mp4"))
	content, err := os.ReadFile(filepath.Join(root, "Hi_There", "A.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("video"), content)

	entries, err := os.ReadDir(filepath.Join(root, "Hi_There"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging files left behind")

	files, bytes := m.Written()
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(5), bytes)
}

func TestWriteFileReplaces(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, m.WriteFile("f", "A.json", []byte("old")))
	require.NoError(t, m.WriteFile("f", "A.json", []byte("new")))

	content, err := os.ReadFile(m.Path("f", "A.json"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestExistsIgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "f", "A.mp4"), 0755))

	m, err := NewManager(root)
	require.NoError(t, err)
	assert.False(t, m.Exists("f", "A.mp4"))
}

func TestFirstExisting(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.WriteFile("B", "B_1.webp", []byte("img")))

	name, ok := m.FirstExisting("B", "B_1.jpg", "B_1.webp", "B_1.png")
	assert.True(t, ok)
	assert.Equal(t, "B_1.webp", name)

	_, ok = m.FirstExisting("B", "B_2.jpg")
	assert.False(t, ok)
}

func TestWriteIfAbsent(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	wrote, err := m.WriteIfAbsent("B", "B.json", []byte("first"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = m.WriteIfAbsent("B", "B.json", []byte("second"))
	require.NoError(t, err)
	assert.False(t, wrote)

	content, err := os.ReadFile(m.Path("B", "B.json"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
}

func TestWriteIfAbsentConcurrent(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	var wrote atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.WriteIfAbsent("B", "B.json", []byte("x"))
			assert.NoError(t, err)
			if ok {
				wrote.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wrote.Load())
}

func TestWriteIfAbsentWithoutHardLinks(t *testing.T) {
	link = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EPERM}
	}
	t.Cleanup(func() { link = os.Link })

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	wrote, err := m.WriteIfAbsent("B", "B.json", []byte("first"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = m.WriteIfAbsent("B", "B.json", []byte("second"))
	require.NoError(t, err)
	assert.False(t, wrote)

	content, err := os.ReadFile(m.Path("B", "B.json"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	entries, err := os.ReadDir(filepath.Join(m.Root(), "B"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging files left behind")

	files, bytes := m.Written()
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(5), bytes)
}

func TestWriteIfAbsentReportsOtherLinkErrors(t *testing.T) {
	link = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EIO}
	}
	t.Cleanup(func() { link = os.Link })

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.WriteIfAbsent("B", "B.json", []byte("x"))
	assert.True(t, errs.Is(err, errs.ErrorTypeFilesystem))
	assert.False(t, m.Exists("B", "B.json"))
}

func TestNewManagerRemovesStaleStagingFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Hi_There")
	require.NoError(t, os.MkdirAll(dir, 0755))
	stale := filepath.Join(dir, ".A.mp4.123"+tempSuffix)
	keep := filepath.Join(dir, "A.json")
	require.NoError(t, os.WriteFile(stale, []byte("half"), 0644))
	require.NoError(t, os.WriteFile(keep, []byte("{}"), 0644))

	_, err := NewManager(root)
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
}

func TestNewManagerFailsOnFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, err := NewManager(file)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeFilesystem))
}

func TestWriteAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fav", "nested", "fav.json")
	require.NoError(t, WriteAtomic(path, []byte("{}")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}
