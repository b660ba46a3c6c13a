package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/valter-silva-au/aipm/pkg/models"
)

var (
	columnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeColumnStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	columnHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedCardStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("238"))
	toastStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	confirmStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	inputBoxStyle     = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240"))

	progressStyles = map[models.Progress]lipgloss.Style{
		models.Backlog:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.Todo:       lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		models.InProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		models.Done:       lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
	}

	priorityStyles = map[models.Priority]lipgloss.Style{
		models.Low:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.Medium:   lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		models.High:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// gauge draws a task's lane as a three-cell bar.
func gauge(p models.Progress) string {
	r := max(p.Rank(), 0)
	bar := strings.Repeat("▰", r) + strings.Repeat("▱", len(models.AllProgress)-1-r)
	return progressStyles[p].Render(bar)
}

func priorityMark(p models.Priority) string {
	switch p {
	case models.Critical:
		return priorityStyles[p].Render("!!")
	case models.High:
		return priorityStyles[p].Render("! ")
	}
	return "  "
}

func (m tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	s := m.cfg.Settings()

	var b strings.Builder
	b.WriteString(m.header(s))
	b.WriteString("\n\n")
	b.WriteString(m.columns(s))
	b.WriteString("\n")

	if m.confirm != uuid.Nil {
		if t := m.board.Get(m.confirm); t != nil {
			b.WriteString(confirmStyle.Render(fmt.Sprintf("Delete %q and its sub-tasks? (y/n)", t.Title)))
			b.WriteString("\n")
		}
	}
	for _, t := range m.toasts {
		b.WriteString(toastStyle.Render("  " + t.text))
		b.WriteString("\n")
	}
	if matches := m.mentions(); len(matches) > 0 && m.focus == focusInput {
		for i, t := range matches {
			line := fmt.Sprintf("  %s  %-12s %s", t.ShortID(), t.Bucket, t.Title)
			if i == m.mention {
				line = selectedCardStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString(inputBoxStyle.Width(max(m.width-2, 10)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m tuiModel) header(s models.Settings) string {
	title := titleStyle.Render(" aipm ")
	ai := "AI off"
	if m.cfg.Configured() {
		ai = "AI " + s.Model
	}
	status := fmt.Sprintf(" %s · %s", s.OwnerName, ai)
	if n := m.cfg.Worker.Pending(); n > 0 {
		status += fmt.Sprintf(" · thinking (%d)", n)
	}
	return title + helpStyle.Render(status)
}

func (m tuiModel) columns(s models.Settings) string {
	if len(s.Buckets) == 0 {
		return "  No buckets configured."
	}
	colWidth := max((m.width-2)/len(s.Buckets)-4, 12)

	cols := make([]string, len(s.Buckets))
	for i, bucket := range s.Buckets {
		ids := m.board.Column(bucket.Name, s)
		var c strings.Builder
		c.WriteString(columnHeaderStyle.Render(fmt.Sprintf("%s (%d)", bucket.Name, len(ids))))
		c.WriteString("\n")
		if len(ids) == 0 {
			c.WriteString(helpStyle.Render("empty"))
		}
		for _, id := range ids {
			c.WriteString(m.card(m.board.Get(id), colWidth))
			c.WriteString("\n")
		}

		style := columnStyle
		if i == m.bucket && m.focus == focusBoard {
			style = activeColumnStyle
		}
		cols[i] = style.Width(colWidth).Render(strings.TrimRight(c.String(), "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// card renders a task as two lines: gauge and title, then short id, due
// date and sub-task completion.
func (m tuiModel) card(t *models.Task, width int) string {
	clip := lipgloss.NewStyle().MaxWidth(width)
	top := gauge(t.Progress) + " " + priorityMark(t.Priority) + t.Title

	meta := []string{t.ShortID()}
	if t.DueDate != nil {
		meta = append(meta, "due "+t.DueDate.String())
	}
	if kids := m.board.Children(t.ID); len(kids) > 0 {
		done := 0
		for _, k := range kids {
			if m.board.Get(k).Progress == models.Done {
				done++
			}
		}
		meta = append(meta, fmt.Sprintf("%d/%d sub", done, len(kids)))
	}
	if len(t.Dependencies) > 0 {
		meta = append(meta, fmt.Sprintf("%d dep", len(t.Dependencies)))
	}
	bottom := "    " + strings.Join(meta, " · ")

	if t.ID == m.board.Selected {
		return clip.Render(selectedCardStyle.Render(top)) + "\n" + clip.Render(bottom)
	}
	return clip.Render(top) + "\n" + clip.Render(helpStyle.Render(bottom))
}

func (m tuiModel) help() string {
	if m.focus == focusInput {
		return "enter: send · @: edit a task · ↑/↓: history · tab/esc: board · ctrl+c: quit"
	}
	return "h/l: bucket · j/k: select · p/P: progress · !: priority · e: edit · d: delete · i: type · ctrl+c: quit"
}
