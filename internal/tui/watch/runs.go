package watch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/launchbridge/internal/events"
)

// RunState is the TUI's view of one run.
type RunState struct {
	ID        string
	State     string
	JobID     string
	UpdatedAt time.Time
}

func newRunTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Run", Width: 24},
			{Title: "State", Width: 8},
			{Title: "Launch job", Width: 12},
			{Title: "Updated", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// applyRunEvent folds run lifecycle events into runs.
func applyRunEvent(runs map[string]*RunState, e events.Event) {
	var data struct {
		RunID string `json:"run_id"`
		To    string `json:"to"`
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.RunID == "" {
		return
	}

	switch e.Type {
	case events.TypeRunTransition:
		r := ensureRun(runs, data.RunID)
		r.State = data.To
		r.UpdatedAt = e.At
	case events.TypeRunSubmitted:
		r := ensureRun(runs, data.RunID)
		r.JobID = data.JobID
		r.UpdatedAt = e.At
	}
}

func ensureRun(runs map[string]*RunState, id string) *RunState {
	r, ok := runs[id]
	if !ok {
		r = &RunState{ID: id}
		runs[id] = r
	}
	return r
}

// runRows renders runs sorted with live runs first, then by id.
func runRows(runs map[string]*RunState) []table.Row {
	list := make([]*RunState, 0, len(runs))
	for _, r := range runs {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		li, lj := isLive(list[i].State), isLive(list[j].State)
		if li != lj {
			return li
		}
		return list[i].ID < list[j].ID
	})

	rows := make([]table.Row, 0, len(list))
	for _, r := range list {
		job := r.JobID
		if len(job) > 8 {
			job = job[:8]
		}
		updated := ""
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Local().Format("15:04:05")
		}
		rows = append(rows, table.Row{StateIcon(r.State), r.ID, r.State, job, updated})
	}
	return rows
}

func isLive(state string) bool {
	return state == "QUEUED" || state == "RUNNING"
}
