package core

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
	"pgregory.net/rapid"
)

func genWord(t *rapid.T, label string) string {
	return rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,30}[A-Za-z0-9]`).Draw(t, label)
}

func genOptional[T any](t *rapid.T, label string, gen *rapid.Generator[T]) *T {
	if !rapid.Bool().Draw(t, label+"Set") {
		return nil
	}
	v := gen.Draw(t, label)
	return &v
}

func genDate(t *rapid.T, label string) *civil.Date {
	if !rapid.Bool().Draw(t, label+"Set") {
		return nil
	}
	d := civil.Date{
		Year:  rapid.IntRange(2020, 2035).Draw(t, label+"Year"),
		Month: time.Month(rapid.IntRange(1, 12).Draw(t, label+"Month")),
		Day:   rapid.IntRange(1, 28).Draw(t, label+"Day"),
	}
	return &d
}

func genTriageResponse(t *rapid.T, ctx []ContextTask, buckets []string) TriageResponse {
	kind := rapid.SampledFrom([]ActionKind{ActionCreate, ActionUpdate, ActionDelete, ActionDecompose, ActionBulkUpdate}).Draw(t, "kind")
	r := TriageResponse{Action: Action{Kind: kind}}

	title := genWord(t, "title")
	r.Update.Title = &title
	r.Update.Bucket = genOptional(t, "bucket", rapid.SampledFrom(buckets))
	r.Update.Description = genOptional(t, "description", rapid.Custom(func(t *rapid.T) string { return genWord(t, "desc") }))
	r.Update.Progress = genOptional(t, "progress", rapid.SampledFrom(models.AllProgress))
	r.Update.Priority = genOptional(t, "priority", rapid.SampledFrom(models.AllPriorities))
	r.Update.DueDate = genDate(t, "due")

	deps := rapid.SliceOfNDistinct(rapid.SampledFrom(ctx), 0, len(ctx), func(c ContextTask) uuid.UUID { return c.ID }).Draw(t, "deps")
	for _, d := range deps {
		r.Update.Dependencies = append(r.Update.Dependencies, d.ID)
	}

	switch kind {
	case ActionUpdate, ActionDelete:
		r.Action.Target = ShortID(rapid.SampledFrom(ctx).Draw(t, "target").ID)
	case ActionBulkUpdate:
		r.Action.Targets = []string{AllTargets}
		r.Action.Instruction = genWord(t, "instruction")
	}

	n := rapid.IntRange(0, 5).Draw(t, "nSub")
	if kind == ActionDecompose && n == 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		spec := SubSpec{Title: genWord(t, "subTitle")}
		spec.Priority = genOptional(t, "subPriority", rapid.SampledFrom(models.AllPriorities))
		for j := 0; j < i; j++ {
			if rapid.Bool().Draw(t, "dep") {
				spec.DependsOn = append(spec.DependsOn, j)
			}
		}
		r.SubTasks = append(r.SubTasks, spec)
	}
	return r
}

// Serializing a schema-conforming response, parsing it, and serializing
// again yields identical bytes.
func TestProperty_TriageSerializeParseStable(t *testing.T) {
	ctx := []ContextTask{
		{ID: mustID("aaaa1111-0000-4000-8000-000000000001")},
		{ID: mustID("bbbb2222-0000-4000-8000-000000000002")},
		{ID: mustID("cccc3333-0000-4000-8000-000000000003")},
	}
	buckets := []string{"Personal", "Team", "Admin"}

	rapid.Check(t, func(t *rapid.T) {
		orig := genTriageResponse(t, ctx, buckets)
		first, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		parsed, err := ParseTriage(string(first), ctx, buckets)
		if err != nil {
			t.Fatalf("ParseTriage(%s): %v", first, err)
		}
		second, err := json.Marshal(*parsed)
		if err != nil {
			t.Fatalf("marshal parsed: %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("round trip changed output:\n first: %s\nsecond: %s", first, second)
		}
	})
}

// Arbitrary model output never panics the parser.
func TestProperty_ParseNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.String().Draw(t, "content")
		_, _ = ParseTriage(content, nil, nil)
		_, _ = ParseEdit(content, nil, nil)
	})
}
