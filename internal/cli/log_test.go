package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/aipm/internal/observability"
)

func TestParseSinceDuration(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"7d", now.AddDate(0, 0, -7), false},
		{"30d", now.AddDate(0, 0, -30), false},
		{"24h", now.Add(-24 * time.Hour), false},
		{" 2h ", now.Add(-2 * time.Hour), false},
		{"", now.AddDate(0, 0, -7), false},
		{"xd", time.Time{}, true},
		{"abch", time.Time{}, true},
		{"2w", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSinceDuration(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogCmd_NilActivity(t *testing.T) {
	setupCLI(t)
	Activity = nil

	if _, err := runCLI(t, "log"); err == nil {
		t.Fatal("expected error without an activity log")
	}
}

func TestLogCmd_Empty(t *testing.T) {
	setupCLI(t)
	out := mustRun(t, "log")
	if !strings.Contains(out, "No activity.") {
		t.Errorf("output = %q", out)
	}
}

func TestLogCmd_ListsEvents(t *testing.T) {
	store := setupCLI(t)
	addTask(t, store, "Book flights")
	addTask(t, store, "Renew passport")
	if err := Activity.LogEvent("ai.create", map[string]any{"title": "Pack", "sub_tasks": 2}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	out := mustRun(t, "log")
	if got := strings.Count(out, "task.add"); got != 2 {
		t.Errorf("task.add lines = %d, want 2\n%s", got, out)
	}
	if !strings.Contains(out, "ai.create") {
		t.Errorf("missing ai.create in %q", out)
	}

	out = mustRun(t, "log", "--type", "task.")
	if strings.Contains(out, "ai.create") {
		t.Errorf("family filter let ai.create through: %q", out)
	}

	out = mustRun(t, "log", "-n", "1")
	if got := len(strings.Split(strings.TrimSpace(out), "\n")); got != 1 {
		t.Errorf("--limit 1 printed %d lines", got)
	}
}

func TestLogCmd_BadSince(t *testing.T) {
	setupCLI(t)
	_, err := runCLI(t, "log", "--since", "soon")
	if err == nil || !strings.Contains(err.Error(), "parsing --since") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLogCmd_Stats(t *testing.T) {
	store := setupCLI(t)
	addTask(t, store, "Book flights")
	for _, ev := range []string{"ai.create", "ai.decompose", "undo"} {
		if err := Activity.LogEvent(ev, map[string]any{"sub_tasks": 1}); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
	}

	out := mustRun(t, "log", "--stats")
	for _, want := range []string{"Events recorded:", "AI created:", "By type:", "task.add:"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "log", "--stats", "-o", "json")
	var stats observability.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if stats.EventCount != 4 || stats.AICreated != 1 || stats.AIDecomposed != 1 || stats.Undos != 1 || stats.UserChanges != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SubTasks != 3 {
		t.Errorf("SubTasks = %d, want 3", stats.SubTasks)
	}
}
