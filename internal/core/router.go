package core

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// decomposePhrases reroute an @-edit to triage so the model can create
// real children.
var decomposePhrases = []string{
	"break down", "decompose", "sub-issue", "subissue", "sub-task", "subtask", "split into", "break into",
}

// IsDecompose reports whether an instruction asks for sub-tasks.
func IsDecompose(instruction string) bool {
	lower := strings.ToLower(instruction)
	for _, p := range decomposePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// RouteKind says what the caller should do with an input line.
type RouteKind int

const (
	RouteNone RouteKind = iota
	RouteQuit
	RouteJob
	RouteApply
	RouteToast
)

// Route is the classification of one input line. RouteJob carries Job for
// the worker; RouteApply carries a Result to hand straight to the applier.
type Route struct {
	Kind   RouteKind
	Job    Job
	Result Result
	Toast  string
}

// Router classifies input lines. It reads the board but never mutates it.
type Router struct {
	board      *Board
	settings   func() models.Settings
	configured func() bool
	history    *History
	now        func() time.Time
}

// NewRouter creates a Router. configured reports whether the model can be
// called; when it cannot, plain text falls back to local routing.
func NewRouter(b *Board, settings func() models.Settings, configured func() bool, history *History) *Router {
	return &Router{
		board:      b,
		settings:   settings,
		configured: configured,
		history:    history,
		now:        time.Now,
	}
}

// Route classifies line.
func (r *Router) Route(line string) Route {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return Route{Kind: RouteNone}
	case strings.EqualFold(text, "exit"):
		return Route{Kind: RouteQuit}
	case strings.HasPrefix(text, "@"):
		return r.routeMention(strings.TrimSpace(text[1:]))
	}

	if !r.configured() {
		return Route{Kind: RouteApply, Result: Result{Kind: JobTriage, Raw: text, Err: ErrNotConfigured}}
	}
	return Route{Kind: RouteJob, Job: NewTriageJob(r.board, r.settings(), text, r.history, r.today())}
}

// routeMention handles "@<instruction>" for the selected task and
// "@<prefix> <instruction>" for a named one.
func (r *Router) routeMention(body string) Route {
	target := r.board.SelectedTask()
	instruction := body
	if fields := strings.Fields(body); len(fields) > 0 && isShortHex(fields[0]) {
		if t := r.board.Resolve(fields[0]); t != nil {
			target = t
			instruction = strings.TrimSpace(body[len(fields[0]):])
		}
	}
	if target == nil {
		return Route{Kind: RouteToast, Toast: "No task selected"}
	}
	if instruction == "" {
		return Route{Kind: RouteToast, Toast: "Type an instruction after @"}
	}
	if !r.configured() {
		return Route{Kind: RouteToast, Toast: ErrNotConfigured.Error()}
	}

	s := r.settings()
	if IsDecompose(instruction) {
		raw := fmt.Sprintf("[target task: %s %q in %s] %s", target.ShortID(), target.Title, target.Bucket, instruction)
		return Route{Kind: RouteJob, Job: NewTriageJob(r.board, s, raw, r.history, r.today())}
	}
	return Route{Kind: RouteJob, Job: NewEditJob(r.board, s, *target, instruction, r.today())}
}

func (r *Router) today() civil.Date { return civil.DateOf(r.now()) }

func isShortHex(s string) bool {
	if len(s) < MinPrefixLen || len(s) > models.ShortIDLen {
		return false
	}
	for _, c := range strings.ToLower(s) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
