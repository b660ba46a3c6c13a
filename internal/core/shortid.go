package core

import (
	"strings"

	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// MinPrefixLen is the shortest prefix the resolver accepts.
const MinPrefixLen = 4

// ShortID renders the first eight lowercase hex characters of id.
func ShortID(id uuid.UUID) string {
	return id.String()[:models.ShortIDLen]
}

// normalizePrefix lower-cases and trims a prefix and cuts it to the short-id
// length. It returns "" when the prefix is too short to resolve.
func normalizePrefix(prefix string) string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	p = strings.Trim(p, "[]()#@")
	if len(p) > models.ShortIDLen {
		p = p[:models.ShortIDLen]
	}
	if len(p) < MinPrefixLen {
		return ""
	}
	return p
}

// resolveIDs finds the single id whose short form starts with prefix.
// Zero or multiple matches both report not found.
func resolveIDs(ids []uuid.UUID, prefix string) (uuid.UUID, bool) {
	p := normalizePrefix(prefix)
	if p == "" {
		return uuid.Nil, false
	}
	var (
		found uuid.UUID
		n     int
	)
	for _, id := range ids {
		if strings.HasPrefix(ShortID(id), p) {
			if n > 0 && id == found {
				continue
			}
			found = id
			n++
		}
	}
	if n != 1 {
		return uuid.Nil, false
	}
	return found, true
}

// ResolvePrefix maps a short-id prefix to a task id in tasks.
func ResolvePrefix(tasks []models.Task, prefix string) (uuid.UUID, bool) {
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return resolveIDs(ids, prefix)
}

// resolveInContext maps a prefix to a task id from the context window sent
// to the model.
func resolveInContext(ctx []ContextTask, prefix string) (uuid.UUID, bool) {
	ids := make([]uuid.UUID, len(ctx))
	for i, c := range ctx {
		ids[i] = c.ID
	}
	return resolveIDs(ids, prefix)
}

// AppendDependencies adds ids to the task's dependency list, skipping the
// task itself, nil ids and entries already present. Input order is kept.
// It reports whether the list changed.
func AppendDependencies(t *models.Task, ids ...uuid.UUID) bool {
	changed := false
	for _, id := range ids {
		if id == uuid.Nil || id == t.ID || t.HasDependency(id) {
			continue
		}
		t.Dependencies = append(t.Dependencies, id)
		changed = true
	}
	return changed
}

// cleanDependencies returns ids with self, nil and duplicate entries dropped.
func cleanDependencies(self uuid.UUID, ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
