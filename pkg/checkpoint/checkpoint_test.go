package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dyfav/pkg/logger"
	"dyfav/pkg/materializer"
)

func newTestManager(t *testing.T, root string) *Manager {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())
	mgr, err := NewManager(root, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return mgr
}

func TestCheckpointManager(t *testing.T) {
	root := t.TempDir()

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr := newTestManager(t, root)

		cp, err := mgr.Create("run-1")
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.RunID != "run-1" {
			t.Errorf("Expected run id run-1, got %s", cp.RunID)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Root != cp.Root {
			t.Errorf("Expected root %s, got %s", cp.Root, loaded.Root)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr := newTestManager(t, root)
		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Fatalf("Expected nil, nil; got %v, %v", cp, err)
		}
	})

	t.Run("RecordOutcomes", func(t *testing.T) {
		mgr := newTestManager(t, root)
		cp, err := mgr.Create("run-1")
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		results := []materializer.Result{
			{ItemID: "A", Folder: "Hi_There", Status: materializer.StatusDownloaded, Files: []string{"A.mp4", "A.json"}},
			{ItemID: "B", Folder: "B", Status: materializer.StatusFailed, Err: errors.New("network error: timeout")},
			{ItemID: "B", Folder: "B", Status: materializer.StatusDownloaded, Files: []string{"B_1.jpg", "B.json"}},
			{ItemID: "C", Folder: "C", Status: materializer.StatusFailed, Err: errors.New("not_found error (code 404)")},
		}
		for _, res := range results {
			if err := mgr.Record(cp, res); err != nil {
				t.Fatalf("Failed to record: %v", err)
			}
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if len(loaded.Items) != 3 {
			t.Errorf("Expected 3 items, got %d", len(loaded.Items))
		}
		if got := loaded.Totals["downloaded"]; got != 2 {
			t.Errorf("Expected 2 downloaded, got %d", got)
		}
		if got := loaded.Totals["failed"]; got != 1 {
			t.Errorf("Expected 1 failed, got %d", got)
		}
		if out := loaded.Items["C"]; out.Error == "" {
			t.Error("Expected error text for C")
		}
		if failed := loaded.Failed(); len(failed) != 1 || failed[0] != "C" {
			t.Errorf("Expected [C] failed, got %v", failed)
		}
	})

	t.Run("ResumeKeepsItems", func(t *testing.T) {
		mgr := newTestManager(t, root)
		cp, _ := mgr.Create("run-1")
		if err := mgr.Record(cp, materializer.Result{ItemID: "A", Status: materializer.StatusDownloaded}); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}

		resumed, err := mgr.Resume("run-2")
		if err != nil {
			t.Fatalf("Failed to resume: %v", err)
		}
		if resumed.RunID != "run-2" {
			t.Errorf("Expected run-2, got %s", resumed.RunID)
		}
		if _, ok := resumed.Items["A"]; !ok {
			t.Error("Expected item A to survive resume")
		}
	})

	t.Run("ResumeCorrupt", func(t *testing.T) {
		mgr := newTestManager(t, root)
		if err := os.WriteFile(mgr.Path(), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		cp, err := mgr.Resume("run-3")
		if err != nil {
			t.Fatalf("Failed to resume: %v", err)
		}
		if len(cp.Items) != 0 {
			t.Errorf("Expected fresh ledger, got %d items", len(cp.Items))
		}
		if _, err := os.Stat(mgr.Path() + ".backup"); err != nil {
			t.Error("Expected corrupt checkpoint to be backed up")
		}
	})

	t.Run("DeleteAndExists", func(t *testing.T) {
		mgr := newTestManager(t, root)
		if _, err := mgr.Create("run-1"); err != nil {
			t.Fatal(err)
		}
		if !mgr.Exists() {
			t.Fatal("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if mgr.Exists() {
			t.Error("Checkpoint still exists after delete")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting twice should not fail: %v", err)
		}
	})

	t.Run("Info", func(t *testing.T) {
		mgr := newTestManager(t, root)
		info, err := mgr.GetCheckpointInfo()
		if err != nil || info != nil {
			t.Fatalf("Expected no info without checkpoint, got %v, %v", info, err)
		}

		cp, _ := mgr.Create("run-1")
		_ = mgr.Record(cp, materializer.Result{ItemID: "A", Status: materializer.StatusSkipped})
		info, err = mgr.GetCheckpointInfo()
		if err != nil {
			t.Fatal(err)
		}
		if info["skipped"] != 1 || info["items"] != 1 {
			t.Errorf("Unexpected info: %v", info)
		}
	})
}

func TestSeparateRootsSeparateLedgers(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	a, err := NewManager(filepath.Join(t.TempDir(), "a"), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewManager(filepath.Join(t.TempDir(), "b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Path() == b.Path() {
		t.Error("Expected distinct checkpoint paths per root")
	}
}

func TestLockExcludesSecondRun(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	root := t.TempDir()

	first, err := NewManager(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewManager(root, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := first.Lock(); err != nil {
		t.Fatalf("First lock failed: %v", err)
	}
	if err := second.Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := second.Lock(); err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	_ = second.Unlock()
}

func TestGetDataDirectory(t *testing.T) {
	dir, err := getDataDirectory()
	if err != nil {
		t.Fatalf("Failed to get data directory: %v", err)
	}
	if dir == "" {
		t.Error("Data directory is empty")
	}
}
