// Package observability records the activity of aipm as JSON Lines, derives
// summary statistics from that log, and evaluates simple board alerts such as
// overdue or stale tasks.
package observability
