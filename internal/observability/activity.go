package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event is one line of activity.jsonl.
type Event struct {
	Time    time.Time      `json:"time" yaml:"time"`
	Type    string         `json:"type" yaml:"type"` // e.g. "ai.create", "task.progress"
	Message string         `json:"msg" yaml:"msg"`
	Data    map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// EventFilter selects events when reading. Type matches exactly, or as a
// prefix when it ends in ".". Limit keeps the most recent N matches.
type EventFilter struct {
	Since *time.Time
	Type  string
	Limit int
}

// ActivityLog appends and reads activity events.
type ActivityLog interface {
	Write(event Event) error
	LogEvent(eventType string, data map[string]any) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

type jsonlActivityLog struct {
	path string
	file *os.File
	now  func() time.Time
	mu   sync.Mutex
}

// NewActivityLog opens (or creates) the JSONL activity log at path.
func NewActivityLog(path string) (ActivityLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating activity log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	return &jsonlActivityLog{path: path, file: f, now: time.Now}, nil
}

// Write appends one event followed by a newline.
func (l *jsonlActivityLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// LogEvent stamps and writes an event, building the message from the task
// title when one is present.
func (l *jsonlActivityLog) LogEvent(eventType string, data map[string]any) error {
	return l.Write(Event{
		Time:    l.now().UTC(),
		Type:    eventType,
		Message: describe(eventType, data),
		Data:    data,
	})
}

func describe(eventType string, data map[string]any) string {
	verb := strings.ReplaceAll(eventType, ".", " ")
	if title, ok := data["title"].(string); ok && title != "" {
		return verb + ": " + title
	}
	return verb
}

// Read scans the log and returns the events matching filter, oldest first.
// Malformed lines are skipped.
func (l *jsonlActivityLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening activity log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning activity log: %w", err)
	}

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

// Close closes the underlying file.
func (l *jsonlActivityLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing activity log: %w", err)
	}
	return nil
}

func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	switch {
	case filter.Type == "":
	case strings.HasSuffix(filter.Type, "."):
		if !strings.HasPrefix(event.Type, filter.Type) {
			return false
		}
	case event.Type != filter.Type:
		return false
	}
	return true
}
