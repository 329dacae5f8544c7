package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

const sheetName = "Results"

var header = []string{"id", "user", "score", "correct", "total", "passed", "auto_submitted", "time_taken", "completed_at"}

func row(r quiz.Result) []string {
	return []string{
		r.ID,
		sanitizeForExcel(r.UserID),
		strconv.Itoa(r.Score),
		strconv.Itoa(r.CorrectAnswers),
		strconv.Itoa(r.TotalQuestions),
		strconv.FormatBool(r.Passed),
		strconv.FormatBool(r.AutoSubmitted),
		strconv.Itoa(r.TimeTaken),
		r.CompletedAt.UTC().Format(time.RFC3339),
	}
}

// CSV writes one header line and one line per result.
func CSV(w io.Writer, results []quiz.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX streams the same rows into a single-sheet workbook.
func XLSX(w io.Writer, results []quiz.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := sw.SetRow("A1", head); err != nil {
		return err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.ID, sanitizeForExcel(r.UserID), r.Score, r.CorrectAnswers, r.TotalQuestions,
			r.Passed, r.AutoSubmitted, r.TimeTaken, r.CompletedAt.UTC().Format(time.RFC3339),
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// sanitizeForExcel neutralises values a spreadsheet would evaluate as formulas.
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
