package models

import "strings"

// Progress is the lane a task sits in. Lanes are ordered
// Backlog < Todo < InProgress < Done.
type Progress string

const (
	Backlog    Progress = "Backlog"
	Todo       Progress = "Todo"
	InProgress Progress = "InProgress"
	Done       Progress = "Done"
)

// AllProgress lists the lanes in order.
var AllProgress = []Progress{Backlog, Todo, InProgress, Done}

// Rank returns the lane's position, or -1 for an unknown value.
func (p Progress) Rank() int {
	for i, lane := range AllProgress {
		if lane == p {
			return i
		}
	}
	return -1
}

// IsValid reports whether p is one of the four lanes.
func (p Progress) IsValid() bool { return p.Rank() >= 0 }

// Label returns the human-readable lane name.
func (p Progress) Label() string {
	if p == InProgress {
		return "In Progress"
	}
	return string(p)
}

// Advance returns the next lane, clamped at Done.
func (p Progress) Advance() Progress {
	r := p.Rank()
	if r < 0 || r == len(AllProgress)-1 {
		return p
	}
	return AllProgress[r+1]
}

// Retreat returns the previous lane, clamped at Backlog.
func (p Progress) Retreat() Progress {
	r := p.Rank()
	if r <= 0 {
		return p
	}
	return AllProgress[r-1]
}

// ParseProgress parses a progress value case-insensitively. Spaces, dashes
// and underscores are ignored, so "in progress", "in-progress" and
// "inprogress" all name InProgress.
func ParseProgress(s string) (Progress, bool) {
	switch squash(s) {
	case "backlog":
		return Backlog, true
	case "todo":
		return Todo, true
	case "inprogress", "doing", "wip":
		return InProgress, true
	case "done", "complete", "completed":
		return Done, true
	}
	return "", false
}

// AggregateProgress derives a parent's lane from its children's lanes.
// It returns false for an empty set, meaning the parent stays as it is.
func AggregateProgress(children []Progress) (Progress, bool) {
	if len(children) == 0 {
		return "", false
	}
	var done, inProgress, todo int
	for _, c := range children {
		switch c {
		case Done:
			done++
		case InProgress:
			inProgress++
		case Todo:
			todo++
		}
	}
	switch {
	case done == len(children):
		return Done, true
	case inProgress > 0 || done > 0:
		return InProgress, true
	case todo > 0:
		return Todo, true
	default:
		return Backlog, true
	}
}

// Priority is the urgency of a task, ordered Low < Medium < High < Critical.
type Priority string

const (
	Low      Priority = "Low"
	Medium   Priority = "Medium"
	High     Priority = "High"
	Critical Priority = "Critical"
)

// AllPriorities lists the priorities in ascending order.
var AllPriorities = []Priority{Low, Medium, High, Critical}

// Rank returns the priority's position, or -1 for an unknown value.
func (p Priority) Rank() int {
	for i, v := range AllPriorities {
		if v == p {
			return i
		}
	}
	return -1
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool { return p.Rank() >= 0 }

// Next cycles to the following priority, wrapping from Critical to Low.
func (p Priority) Next() Priority {
	r := p.Rank()
	return AllPriorities[(r+1)%len(AllPriorities)]
}

// ParsePriority parses a priority case-insensitively, accepting the short
// forms "med" and "crit".
func ParsePriority(s string) (Priority, bool) {
	switch squash(s) {
	case "low":
		return Low, true
	case "med", "medium", "normal":
		return Medium, true
	case "high", "urgent":
		return High, true
	case "crit", "critical":
		return Critical, true
	}
	return "", false
}

// squash lower-cases s and drops spaces, dashes and underscores.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
