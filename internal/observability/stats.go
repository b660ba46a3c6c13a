package observability

import (
	"fmt"
	"time"
)

// Stats summarises the activity log.
type Stats struct {
	AICreated    int            `json:"ai_created" yaml:"ai_created"`
	AIUpdated    int            `json:"ai_updated" yaml:"ai_updated"`
	AIDeleted    int            `json:"ai_deleted" yaml:"ai_deleted"`
	AIDecomposed int            `json:"ai_decomposed" yaml:"ai_decomposed"`
	AIEdits      int            `json:"ai_edits" yaml:"ai_edits"`
	SubTasks     int            `json:"sub_tasks" yaml:"sub_tasks"`
	UserChanges  int            `json:"user_changes" yaml:"user_changes"`
	Undos        int            `json:"undos" yaml:"undos"`
	ByType       map[string]int `json:"by_type" yaml:"by_type"`
	EventCount   int            `json:"event_count" yaml:"event_count"`
	OldestEvent  *time.Time     `json:"oldest_event,omitempty" yaml:"oldest_event,omitempty"`
	NewestEvent  *time.Time     `json:"newest_event,omitempty" yaml:"newest_event,omitempty"`
}

// StatsCalculator derives Stats from an ActivityLog.
type StatsCalculator interface {
	Calculate(since time.Time) (*Stats, error)
}

type statsCalculator struct {
	log ActivityLog
}

// NewStatsCalculator creates a StatsCalculator reading from log.
func NewStatsCalculator(log ActivityLog) StatsCalculator {
	return &statsCalculator{log: log}
}

// Calculate aggregates every event at or after since.
func (sc *statsCalculator) Calculate(since time.Time) (*Stats, error) {
	events, err := sc.log.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for stats: %w", err)
	}

	s := &Stats{ByType: make(map[string]int)}
	s.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			s.OldestEvent = &t
		}
		t := event.Time
		s.NewestEvent = &t
		s.ByType[event.Type]++

		switch event.Type {
		case "ai.create":
			s.AICreated++
		case "ai.update":
			s.AIUpdated++
		case "ai.delete":
			s.AIDeleted++
		case "ai.decompose":
			s.AIDecomposed++
		case "ai.edit":
			s.AIEdits++
		case "undo":
			s.Undos++
		default:
			s.UserChanges++
		}
		s.SubTasks += intField(event.Data, "sub_tasks")
	}
	return s, nil
}

// intField reads a count that went through JSON, where numbers decode as
// float64.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
