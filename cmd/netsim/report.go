package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sarchlab/netsim/scenario"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

func renderReport(r scenario.Report) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("=== " + r.Name + " ==="))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf(
		"run %s  seed %d  nodes %d  events %d  ended at %.3fs",
		r.RunID, r.Seed, r.Nodes, r.Dispatched, r.EndTime)))
	sb.WriteString("\n\n")

	rows := [][]string{{"application", "kind", "sent", "received", "dropped", "mean rtt"}}
	for _, a := range r.Apps {
		rtt := "-"
		if a.MeanRTT > 0 {
			rtt = fmt.Sprintf("%.2fms", a.MeanRTT*1000)
		}

		rows = append(rows, []string{
			a.Name,
			a.Kind,
			fmt.Sprint(a.Sent),
			fmt.Sprint(a.Received),
			fmt.Sprint(a.Dropped),
			rtt,
		})
	}
	sb.WriteString(renderTable(rows))

	sb.WriteString(fmt.Sprintf("\nforwarded %d\n", r.Forwarded))
	for _, reason := range r.DropReasons() {
		sb.WriteString(warnStyle.Render(
			fmt.Sprintf("dropped %d (%s)", r.Drops[reason], reason)))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func renderTable(rows [][]string) string {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var lines []string
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(headerStyle)
			}
			cells[i] = style.Render(cell)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}
