package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	errs "dyfav/pkg/errors"
)

const tempSuffix = ".part"

// link is replaced in tests to simulate filesystems without hard links
var link = os.Link

// Manager owns the output tree: one folder per item title, files prefixed
// with the item id. All writes go through a temporary file and a rename so
// a crash never leaves a truncated media file under its final name.
type Manager struct {
	root string

	mu           sync.Mutex
	filesWritten int
	bytesWritten int64
}

// NewManager creates the output root if needed and removes temporary files
// left behind by an interrupted run.
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "create output directory")
	}

	m := &Manager{root: root}
	if err := m.removeStaleTemps(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) removeStaleTemps() error {
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), tempSuffix) && strings.HasPrefix(d.Name(), ".") {
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "scan output directory")
	}
	return nil
}

// Root returns the output root
func (m *Manager) Root() string {
	return m.root
}

// Path returns the location of name inside folder
func (m *Manager) Path(folder, name string) string {
	return filepath.Join(m.root, folder, name)
}

// Exists reports whether folder/name is a regular file
func (m *Manager) Exists(folder, name string) bool {
	info, err := os.Stat(m.Path(folder, name))
	return err == nil && info.Mode().IsRegular()
}

// FirstExisting returns the first of names present in folder
func (m *Manager) FirstExisting(folder string, names ...string) (string, bool) {
	for _, name := range names {
		if m.Exists(folder, name) {
			return name, true
		}
	}
	return "", false
}

// WriteFile atomically writes data to folder/name, replacing any existing
// file.
func (m *Manager) WriteFile(folder, name string, data []byte) error {
	if err := WriteAtomic(m.Path(folder, name), data); err != nil {
		return err
	}

	m.mu.Lock()
	m.filesWritten++
	m.bytesWritten += int64(len(data))
	m.mu.Unlock()
	return nil
}

// WriteAtomic writes data to path through a hidden temporary file in the
// same directory and renames it into place. Missing parent directories are
// created.
func WriteAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "create directory")
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*"+tempSuffix)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "create temporary file")
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.ErrorTypeFilesystem, err, fmt.Sprintf("write %s", name))
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.ErrorTypeFilesystem, err, fmt.Sprintf("rename %s", name))
	}
	return nil
}

// WriteIfAbsent writes folder/name only when it does not exist yet and
// reports whether it wrote.
func (m *Manager) WriteIfAbsent(folder, name string, data []byte) (bool, error) {
	m.mu.Lock()
	exists := m.Exists(folder, name)
	m.mu.Unlock()
	if exists {
		return false, nil
	}

	dir := filepath.Join(m.root, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errs.Wrap(errs.ErrorTypeFilesystem, err, "create item folder")
	}

	// Stage the file, then hard link it into place: the link fails if
	// another writer got there first.
	tmp, err := os.CreateTemp(dir, "."+name+".*"+tempSuffix)
	if err != nil {
		return false, errs.Wrap(errs.ErrorTypeFilesystem, err, "create temporary file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err != nil {
		return false, errs.Wrap(errs.ErrorTypeFilesystem, err, fmt.Sprintf("write %s", name))
	}

	target := filepath.Join(dir, name)
	if err := link(tmpName, target); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		if !linkUnsupported(err) {
			return false, errs.Wrap(errs.ErrorTypeFilesystem, err, fmt.Sprintf("link %s", name))
		}
		wrote, err := claimAndRename(tmpName, target)
		if err != nil {
			return false, errs.Wrap(errs.ErrorTypeFilesystem, err, fmt.Sprintf("place %s", name))
		}
		if !wrote {
			return false, nil
		}
	}

	m.mu.Lock()
	m.filesWritten++
	m.bytesWritten += int64(len(data))
	m.mu.Unlock()
	return true, nil
}

// linkUnsupported reports link errors of filesystems without hard links
// (FAT, exFAT, some network shares).
func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.ENOSYS)
}

// claimAndRename reserves target with an exclusive create, then moves the
// staged file over the placeholder.
func claimAndRename(tmpName, target string) (bool, error) {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	f.Close()

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(target)
		return false, err
	}
	return true, nil
}

// Written returns how many files and bytes this manager has written
func (m *Manager) Written() (files int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filesWritten, m.bytesWritten
}
