package theme

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/tickflow/internal/model"
)

var taskHeaders = []string{"ID", "USER", "TITLE", "STATUS", "DUE", "CREATED"}

const (
	colStatus = 3
	colDue    = 4
)

// TaskTable renders tasks as a bordered table, one row per task.
func TaskTable(tasks []model.Task) string {
	if len(tasks) == 0 {
		return HelpStyle.Render("No tasks.")
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID.String(),
			strconv.FormatInt(t.UserID, 10),
			t.Title,
			string(t.Status),
			formatDue(t.DueDate),
			t.CreatedAt.Local().Format(time.DateTime),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(taskHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			if row < 0 || row >= len(tasks) {
				return CellStyle
			}
			switch col {
			case colStatus:
				return StatusStyle(tasks[row].Status)
			case colDue:
				return DueStyle(tasks[row])
			}
			return CellStyle
		}).
		String()
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "-"
	}
	return due.Local().Format(time.DateTime)
}
