package storage

import (
	"errors"
	"testing"
	"time"
)

func TestUndoStore_SingleStep(t *testing.T) {
	store := NewUndoStore(t.TempDir()).(*fileUndoStore)
	fixed := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	if _, _, err := store.Restore(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("Restore on empty store = %v, want ErrNothingToUndo", err)
	}

	first := sampleTasks()
	if err := store.Snapshot(first[:1]); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := store.Snapshot(first); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	tasks, savedAt, err := store.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("restored %d tasks, want the latest snapshot of 2", len(tasks))
	}
	if !savedAt.Equal(fixed) {
		t.Errorf("savedAt = %v, want %v", savedAt, fixed)
	}

	if _, _, err := store.Restore(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("second Restore = %v, want ErrNothingToUndo", err)
	}
}

func TestUndoStore_EmptySnapshot(t *testing.T) {
	store := NewUndoStore(t.TempDir())
	if err := store.Snapshot(nil); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	tasks, _, err := store.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("Restore = %v, want empty non-nil list", tasks)
	}
}
