package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks controller health from /healthz polling.
type HealthState struct {
	Status        string
	SweepID       string
	UptimeSeconds int64
	QueueDepth    int
	QueueCapacity int
	Runs          map[string]int
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, pulse Pulse, spinner Spinner, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
	}

	uptimeStr := formatDuration(time.Duration(health.UptimeSeconds) * time.Second)

	lastEventStr := "never"
	if !spinner.LastEvent().IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", now.Sub(spinner.LastEvent()).Round(time.Second))
	}
	lastBeatStr := "never"
	if !pulse.LastBeat().IsZero() {
		lastBeatStr = fmt.Sprintf("%s ago", now.Sub(pulse.LastBeat()).Round(time.Second))
	}

	sweep := health.SweepID
	if sweep == "" {
		sweep = "-"
	}
	titleText := fmt.Sprintf(" LAUNCHBRIDGE WATCH %s  sweep %s",
		theme.Highlight.Render(pulse.Current()), theme.Header.Render(sweep))
	clock := theme.Dim.Render(now.Format("15:04:05"))

	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	queueStr := fmt.Sprintf("%d", health.QueueDepth)
	if health.QueueCapacity > 0 {
		queueStr = fmt.Sprintf("%d/%d", health.QueueDepth, health.QueueCapacity)
	}
	statsLine := fmt.Sprintf(" %s  ⏱ %s  Queue: %s  %s",
		statusText, uptimeStr, queueStr, renderCounts(health.Runs, theme))

	activityLine := fmt.Sprintf(" Last heartbeat: %s  Last event: %s %s",
		lastBeatStr, lastEventStr, spinner.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

var stateOrder = []string{"QUEUED", "RUNNING", "STOPPED", "ERRORED", "DONE"}

func renderCounts(counts map[string]int, theme Theme) string {
	parts := make([]string, 0, len(stateOrder))
	for _, s := range stateOrder {
		parts = append(parts, theme.StateStyle(s).Render(fmt.Sprintf("%s %d", s, counts[s])))
	}
	return strings.Join(parts, "  ")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
