package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/launchbridge/internal/events"
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch {
	case strings.HasSuffix(e.Type, ".failed"), strings.HasSuffix(e.Type, "_failed"),
		strings.HasSuffix(e.Type, "_rejected"):
		typeStyle = theme.StatusFailed
	case e.Type == events.TypeRunSubmitted, e.Type == events.TypeBuildSucceeded, e.Type == events.TypePushSucceeded:
		typeStyle = theme.StatusOK
	case e.Type == events.TypeRunKilled, e.Type == events.TypeControllerExited:
		typeStyle = theme.StatusRunning
	case strings.HasPrefix(e.Type, "heartbeat"):
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-26s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, extractEventDesc(e))
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if runID, ok := data["run_id"].(string); ok && runID != "" {
		parts = append(parts, runID)
	}
	if from, ok := data["from"].(string); ok && from != "" {
		parts = append(parts, from+" →")
	}
	if to, ok := data["to"].(string); ok {
		parts = append(parts, to)
	}
	if jobID, ok := data["job_id"].(string); ok {
		if len(jobID) > 8 {
			jobID = jobID[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", jobID))
	}
	if image, ok := data["image"].(string); ok {
		parts = append(parts, image)
	}
	if msg, ok := data["error"].(string); ok {
		parts = append(parts, msg)
	}
	if reason, ok := data["reason"].(string); ok {
		parts = append(parts, reason)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if raw == "{}" || raw == "null" || raw == "" {
			return ""
		}
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
