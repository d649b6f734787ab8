package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"dyfav/pkg/logger"
	"dyfav/pkg/materializer"

	"github.com/gofrs/flock"
)

const currentVersion = 1

// ErrLocked is returned by Lock when another run holds the output root
var ErrLocked = errors.New("output directory is in use by another run")

// Outcome is the last recorded result for one item
type Outcome struct {
	Status string    `json:"status"`
	Folder string    `json:"folder"`
	Files  []string  `json:"files,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Checkpoint is the ledger of item outcomes for one output root
type Checkpoint struct {
	Root      string             `json:"root"`
	RunID     string             `json:"run_id"`
	Items     map[string]Outcome `json:"items"`
	Totals    map[string]int     `json:"totals"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Version   int                `json:"version"`
}

// Manager handles checkpoint operations for one output root
type Manager struct {
	root           string
	checkpointPath string
	lock           *flock.Flock
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the given output root. State
// lives in the user data directory, keyed by the absolute root path, so the
// media tree itself stays untouched.
func NewManager(root string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	sum := sha256.Sum256([]byte(abs))
	key := hex.EncodeToString(sum[:6])

	return &Manager{
		root:           abs,
		checkpointPath: filepath.Join(checkpointsDir, key+".checkpoint.json"),
		lock:           flock.New(filepath.Join(checkpointsDir, key+".lock")),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Lock takes the exclusive lock on the output root without blocking
func (m *Manager) Lock() error {
	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, m.root)
	}
	return nil
}

// Unlock releases the output root lock
func (m *Manager) Unlock() error {
	return m.lock.Unlock()
}

// Create starts a fresh ledger for runID
func (m *Manager) Create(runID string) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Root:      m.root,
		RunID:     runID,
		Items:     make(map[string]Outcome),
		Totals:    make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})
	return checkpoint, nil
}

// Resume loads the existing ledger and stamps it with runID, or creates one
func (m *Manager) Resume(runID string) (*Checkpoint, error) {
	checkpoint, err := m.Load()
	if err != nil {
		m.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		if backupErr := m.BackupCheckpoint(); backupErr != nil {
			return nil, backupErr
		}
		return m.Create(runID)
	}
	if checkpoint == nil {
		return m.Create(runID)
	}
	checkpoint.RunID = runID
	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version != currentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}
	if checkpoint.Items == nil {
		checkpoint.Items = make(map[string]Outcome)
	}
	if checkpoint.Totals == nil {
		checkpoint.Totals = make(map[string]int)
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"items":      len(checkpoint.Items),
		"updated_at": checkpoint.UpdatedAt,
	})
	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Record stores res as the latest outcome of its item and saves the ledger
func (m *Manager) Record(checkpoint *Checkpoint, res materializer.Result) error {
	checkpoint.Apply(res)
	return m.Save(checkpoint)
}

// Apply stores res as the latest outcome of its item without saving
func (checkpoint *Checkpoint) Apply(res materializer.Result) {
	if prev, ok := checkpoint.Items[res.ItemID]; ok {
		checkpoint.Totals[prev.Status]--
	}
	out := Outcome{
		Status: string(res.Status),
		Folder: res.Folder,
		Files:  res.Files,
		At:     time.Now(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	checkpoint.Items[res.ItemID] = out
	checkpoint.Totals[out.Status]++
}

// Failed returns the ids whose latest outcome is a failure
func (checkpoint *Checkpoint) Failed() []string {
	var ids []string
	for id, out := range checkpoint.Items {
		if out.Status == string(materializer.StatusFailed) {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"root":       checkpoint.Root,
		"run_id":     checkpoint.RunID,
		"items":      len(checkpoint.Items),
		"downloaded": checkpoint.Totals[string(materializer.StatusDownloaded)],
		"skipped":    checkpoint.Totals[string(materializer.StatusSkipped)],
		"failed":     checkpoint.Totals[string(materializer.StatusFailed)],
		"created_at": checkpoint.CreatedAt,
		"updated_at": checkpoint.UpdatedAt,
		"age":        time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupCheckpoint copies the current checkpoint next to itself
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "dyfav")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "dyfav")
	default:
		// XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "dyfav")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "dyfav")
		}
	}

	return dataDir, nil
}
