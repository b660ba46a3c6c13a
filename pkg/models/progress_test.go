package models

import "testing"

func TestAggregateProgress(t *testing.T) {
	tests := []struct {
		name     string
		children []Progress
		want     Progress
		ok       bool
	}{
		{"empty leaves parent unchanged", nil, "", false},
		{"all done", []Progress{Done, Done}, Done, true},
		{"any in progress", []Progress{Backlog, InProgress}, InProgress, true},
		{"done mixed with backlog", []Progress{Done, Backlog}, InProgress, true},
		{"done mixed with todo", []Progress{Todo, Done}, InProgress, true},
		{"todo without progress", []Progress{Backlog, Todo}, Todo, true},
		{"all backlog", []Progress{Backlog, Backlog, Backlog}, Backlog, true},
		{"single todo", []Progress{Todo}, Todo, true},
		{"todo in progress backlog", []Progress{Todo, InProgress, Backlog}, InProgress, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AggregateProgress(tt.children)
			if ok != tt.ok || got != tt.want {
				t.Errorf("AggregateProgress(%v) = (%q, %v), want (%q, %v)", tt.children, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestProgress_AdvanceRetreatClamp(t *testing.T) {
	if got := Done.Advance(); got != Done {
		t.Errorf("Done.Advance() = %q, want Done", got)
	}
	if got := Backlog.Retreat(); got != Backlog {
		t.Errorf("Backlog.Retreat() = %q, want Backlog", got)
	}
	if got := Todo.Advance(); got != InProgress {
		t.Errorf("Todo.Advance() = %q, want InProgress", got)
	}
	if got := InProgress.Retreat(); got != Todo {
		t.Errorf("InProgress.Retreat() = %q, want Todo", got)
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		in   string
		want Progress
		ok   bool
	}{
		{"backlog", Backlog, true},
		{"TODO", Todo, true},
		{"in progress", InProgress, true},
		{"in-progress", InProgress, true},
		{"InProgress", InProgress, true},
		{"in_progress", InProgress, true},
		{" Done ", Done, true},
		{"blocked", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseProgress(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseProgress(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
		ok   bool
	}{
		{"low", Low, true},
		{"med", Medium, true},
		{"Medium", Medium, true},
		{"HIGH", High, true},
		{"crit", Critical, true},
		{"critical", Critical, true},
		{"p0", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePriority(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePriority(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPriority_NextWraps(t *testing.T) {
	if got := Critical.Next(); got != Low {
		t.Errorf("Critical.Next() = %q, want Low", got)
	}
	if got := Low.Next(); got != Medium {
		t.Errorf("Low.Next() = %q, want Medium", got)
	}
}
