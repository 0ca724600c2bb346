package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dubctl/internal/stages"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(values []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

// renderStageTable draws the pipeline with one row per stage.
func renderStageTable(projection stages.Projection, colorize bool) string {
	rows := make([][]string, 0, len(projection))
	for _, stage := range projection {
		rows = append(rows, []string{
			stage.Icon,
			stage.Label,
			stageStateLabel(stage.State, colorize),
		})
	}
	return renderTable([]string{"", "Stage", "State"}, rows, nil)
}

func stageStateLabel(state stages.VisualState, colorize bool) string {
	var marker string
	var colors text.Colors
	switch state {
	case stages.StateCompleted:
		marker, colors = "✓ done", text.Colors{text.FgGreen}
	case stages.StateActive:
		marker, colors = "▶ running", text.Colors{text.FgCyan, text.Bold}
	case stages.StateFailed:
		marker, colors = "✗ failed", text.Colors{text.FgRed, text.Bold}
	default:
		marker, colors = "· pending", text.Colors{text.Faint}
	}
	if !colorize {
		return marker
	}
	return colors.Sprint(marker)
}
