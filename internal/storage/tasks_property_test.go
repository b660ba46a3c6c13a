package storage

import (
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"pgregory.net/rapid"
)

func genTask(t *rapid.T, ids []uuid.UUID, i int) models.Task {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := base.Add(time.Duration(rapid.IntRange(0, 100000).Draw(t, "createdMin")) * time.Minute)
	task := models.NewTask(
		rapid.SampledFrom([]string{"Personal", "Team", "Admin"}).Draw(t, "bucket"),
		rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,40}`).Draw(t, "title"),
		created,
	)
	task.ID = ids[i]
	task.Description = rapid.StringMatching(`[ -~]{0,60}`).Draw(t, "desc")
	task.Progress = rapid.SampledFrom(models.AllProgress).Draw(t, "progress")
	task.Priority = rapid.SampledFrom(models.AllPriorities).Draw(t, "priority")
	if rapid.Bool().Draw(t, "hasDue") {
		d := civil.DateOf(created).AddDays(rapid.IntRange(-30, 90).Draw(t, "dueOffset"))
		task.DueDate = &d
	}
	if i > 0 && rapid.Bool().Draw(t, "hasDep") {
		task.Dependencies = []uuid.UUID{ids[rapid.IntRange(0, i-1).Draw(t, "dep")]}
	}
	task.UpdatedAt = created.Add(time.Duration(rapid.IntRange(0, 5000).Draw(t, "updatedSec")) * time.Second)
	return task
}

// Saving and loading any valid task list reproduces it exactly.
func TestProperty_TaskStoreRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp("", "aipm-tasks-*")
		if err != nil {
			t.Fatalf("tempdir: %v", err)
		}
		defer os.RemoveAll(dir)

		n := rapid.IntRange(0, 8).Draw(t, "n")
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = uuid.New()
		}
		want := make([]models.Task, n)
		for i := range want {
			want[i] = genTask(t, ids, i)
		}

		store := NewTaskStore(dir)
		if err := store.Save(want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		first, _ := encodeTasks(want)
		second, _ := encodeTasks(got)
		if string(first) != string(second) {
			t.Fatalf("round trip changed tasks:\n%s\n---\n%s", first, second)
		}
	})
}
