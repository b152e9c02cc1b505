// Package export renders quiz history and progress as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/studybuddy/internal/models"
)

// Sheet names, in workbook order.
const (
	SheetQuizzes   = "Quizzes"
	SheetWeakAreas = "Weak Areas"
	SheetActivity  = "Activity"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	quizHeader     = []any{"Quiz ID", "Created At", "Questions", "Submitted", "Score"}
	weakHeader     = []any{"Topic", "Accuracy (%)", "Correct", "Total"}
	activityHeader = []any{"Quiz ID", "Submitted At", "Questions", "Score"}
)

// WriteWorkbook writes history and summary to w as an xlsx workbook.
func WriteWorkbook(w io.Writer, history []models.QuizHistoryEntry, summary *models.ProgressSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetQuizzes); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetWeakAreas, SheetActivity} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	quizRows := make([][]any, len(history))
	for i, h := range history {
		quizRows[i] = []any{h.QuizID, formatTime(h.CreatedAt), h.TotalQuestions, h.Submitted, scoreCell(h.Score)}
	}
	var weakRows, activityRows [][]any
	if summary != nil {
		for _, wa := range summary.WeakAreas {
			weakRows = append(weakRows, []any{wa.Topic, wa.Accuracy, wa.CorrectAnswers, wa.TotalQuestions})
		}
		for _, a := range summary.RecentActivity {
			activityRows = append(activityRows, []any{a.QuizID, formatTime(a.Timestamp), a.TotalQuestions, a.Score})
		}
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetQuizzes, quizHeader, quizRows},
		{SheetWeakAreas, weakHeader, weakRows},
		{SheetActivity, activityHeader, activityRows},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 20); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return nil
}

func scoreCell(score *float64) any {
	if score == nil {
		return ""
	}
	return *score
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
