package core

import (
	"strings"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// Keyword sets used to guess a bucket without the model. They are disjoint.
var (
	adminKeywords = []string{
		"tax", "taxes", "invoice", "invoices", "accounting", "accountant", "receipt", "receipts",
		"expense", "expenses", "payroll", "bank", "bill", "bills", "insurance", "contract",
		"paperwork", "admin", "budget", "finance",
	}
	ownerKeywords = []string{
		"strategy", "marketing", "brand", "vision", "roadmap", "pitch", "investor", "investors",
		"hire", "hiring", "blog", "post", "content", "personal", "review", "reviews",
	}
	teamKeywords = []string{
		"team", "onboard", "onboarding", "meeting", "sync", "standup", "1:1", "coordinate",
		"coordination", "delegate", "mentor", "crew", "staff", "schedule",
	}
)

// LocalRoute turns raw input into a create result without calling the
// model. It honours inline "due:YYYY-MM-DD" and "p:<priority>" hints and a
// leading "<bucket>:" prefix, then guesses the bucket from keywords.
func LocalRoute(raw string, buckets []models.BucketDef) Result {
	text := strings.TrimSpace(raw)
	var u Update

	if i := strings.IndexByte(text, ':'); i > 0 {
		head := strings.TrimSpace(text[:i])
		for _, b := range buckets {
			if strings.EqualFold(head, b.Name) {
				name := b.Name
				u.Bucket = &name
				text = strings.TrimSpace(text[i+1:])
				break
			}
		}
	}

	var words []string
	for _, w := range strings.Fields(text) {
		lower := strings.ToLower(w)
		switch {
		case strings.HasPrefix(lower, "due:"):
			if d := parseDate(w[len("due:"):]); d != nil {
				u.DueDate = d
				continue
			}
		case strings.HasPrefix(lower, "p:"):
			if p, ok := models.ParsePriority(w[len("p:"):]); ok {
				u.Priority = &p
				continue
			}
		}
		words = append(words, w)
	}

	title := clip(strings.Join(words, " "), MaxTitleBytes)
	if title == "" {
		title = clip(raw, MaxTitleBytes)
	}
	u.Title = &title

	if u.Bucket == nil {
		name := guessBucket(words, buckets)
		u.Bucket = &name
	}

	return Result{
		Kind:   JobTriage,
		Raw:    raw,
		Triage: &Action{Kind: ActionCreate},
		Update: u,
	}
}

// guessBucket picks the bucket whose name or description mentions a keyword
// from the first keyword set that the words hit.
func guessBucket(words []string, buckets []models.BucketDef) string {
	if len(buckets) == 0 {
		return "Unassigned"
	}
	tokens := make(map[string]bool, len(words))
	for _, w := range words {
		tokens[strings.Trim(strings.ToLower(w), ".,;!?()\"'")] = true
	}
	for _, set := range [][]string{adminKeywords, ownerKeywords, teamKeywords} {
		if !hitsAny(tokens, set) {
			continue
		}
		if name, ok := bucketMentioning(set, buckets); ok {
			return name
		}
	}
	return buckets[0].Name
}

func hitsAny(tokens map[string]bool, set []string) bool {
	for _, k := range set {
		if tokens[k] {
			return true
		}
	}
	return false
}

func bucketMentioning(set []string, buckets []models.BucketDef) (string, bool) {
	for _, b := range buckets {
		hay := strings.ToLower(b.Name + " " + b.Description)
		for _, k := range set {
			if strings.Contains(hay, k) {
				return b.Name, true
			}
		}
	}
	return "", false
}
