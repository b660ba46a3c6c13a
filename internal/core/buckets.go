package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// AddBucket appends a bucket. Names are unique case-insensitively.
func AddBucket(s *models.Settings, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("adding bucket: name must not be empty")
	}
	if s.FindBucket(name) >= 0 {
		return fmt.Errorf("adding bucket: %q already exists", name)
	}
	s.Buckets = append(s.Buckets, models.BucketDef{Name: name, Description: strings.TrimSpace(description)})
	return nil
}

// DescribeBucket sets or clears a bucket's description.
func DescribeBucket(s *models.Settings, name, description string) error {
	i := s.FindBucket(name)
	if i < 0 {
		return fmt.Errorf("describing bucket: %q not found", name)
	}
	s.Buckets[i].Description = strings.TrimSpace(description)
	return nil
}

// RenameBucket renames a bucket and moves its tasks. It returns the number
// of tasks moved.
func RenameBucket(s *models.Settings, b *Board, oldName, newName string, now time.Time) (int, error) {
	newName = strings.TrimSpace(newName)
	i := s.FindBucket(oldName)
	if i < 0 {
		return 0, fmt.Errorf("renaming bucket: %q not found", oldName)
	}
	if newName == "" {
		return 0, fmt.Errorf("renaming bucket: new name must not be empty")
	}
	if j := s.FindBucket(newName); j >= 0 && j != i {
		return 0, fmt.Errorf("renaming bucket: %q already exists", newName)
	}
	from := s.Buckets[i].Name
	s.Buckets[i].Name = newName
	return moveTasks(b, from, newName, now), nil
}

// DeleteBucket removes a bucket and moves its tasks to the first remaining
// bucket. The last bucket cannot be deleted.
func DeleteBucket(s *models.Settings, b *Board, name string, now time.Time) (string, int, error) {
	i := s.FindBucket(name)
	if i < 0 {
		return "", 0, fmt.Errorf("deleting bucket: %q not found", name)
	}
	if len(s.Buckets) == 1 {
		return "", 0, fmt.Errorf("deleting bucket: cannot delete the last bucket")
	}
	from := s.Buckets[i].Name
	s.Buckets = append(s.Buckets[:i:i], s.Buckets[i+1:]...)
	to := s.Buckets[0].Name
	return to, moveTasks(b, from, to, now), nil
}

func moveTasks(b *Board, from, to string, now time.Time) int {
	n := 0
	for i := range b.Tasks {
		t := &b.Tasks[i]
		if t.InBucket(from) && t.Bucket != to {
			t.Bucket = to
			t.Touch(now)
			n++
		}
	}
	return n
}
