package core

import (
	"testing"

	"github.com/valter-silva-au/aipm/pkg/models"
)

func TestLocalRoute(t *testing.T) {
	buckets := models.DefaultBuckets()
	tests := []struct {
		raw      string
		title    string
		bucket   string
		priority models.Priority
		due      string
	}{
		{"pay the tax invoice", "pay the tax invoice", "Admin", "", ""},
		{"team standup notes", "team standup notes", "Team", "", ""},
		{"buy groceries", "buy groceries", "Personal", "", ""},
		{"admin: call the plumber", "call the plumber", "Admin", "", ""},
		{"renew passport due:2026-09-01 p:high", "renew passport", "Personal", models.High, "2026-09-01"},
		{"ship it due:tomorrow", "ship it due:tomorrow", "Personal", "", ""},
		{"p:urgent", "p:urgent", "Personal", models.High, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := LocalRoute(tt.raw, buckets)
			if r.Triage == nil || r.Triage.Kind != ActionCreate {
				t.Fatalf("Triage = %v, want create", r.Triage)
			}
			if *r.Update.Title != tt.title {
				t.Errorf("Title = %q, want %q", *r.Update.Title, tt.title)
			}
			if *r.Update.Bucket != tt.bucket {
				t.Errorf("Bucket = %q, want %q", *r.Update.Bucket, tt.bucket)
			}
			if tt.priority != "" && (r.Update.Priority == nil || *r.Update.Priority != tt.priority) {
				t.Errorf("Priority = %v, want %q", r.Update.Priority, tt.priority)
			}
			if tt.due != "" && (r.Update.DueDate == nil || r.Update.DueDate.String() != tt.due) {
				t.Errorf("DueDate = %v, want %s", r.Update.DueDate, tt.due)
			}
		})
	}
}

func TestLocalRoute_NoBuckets(t *testing.T) {
	r := LocalRoute("anything", nil)
	if *r.Update.Bucket != "Unassigned" {
		t.Errorf("Bucket = %q, want Unassigned", *r.Update.Bucket)
	}
}

func TestKeywordSetsDisjoint(t *testing.T) {
	seen := map[string]string{}
	for name, set := range map[string][]string{"admin": adminKeywords, "owner": ownerKeywords, "team": teamKeywords} {
		for _, k := range set {
			if prev, ok := seen[k]; ok {
				t.Errorf("keyword %q in both %s and %s", k, prev, name)
			}
			seen[k] = name
		}
	}
}
