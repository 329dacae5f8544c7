package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

func results() []quiz.Result {
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	return []quiz.Result{
		{ID: "r1", UserID: "alice", Score: 75, CorrectAnswers: 3, TotalQuestions: 4, Passed: true, CompletedAt: at},
		{ID: "r2", UserID: "=cmd|' /C calc'!A0", Score: 25, CorrectAnswers: 1, TotalQuestions: 4, TimeTaken: 60, AutoSubmitted: true, CompletedAt: at},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, results()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"r1", "alice", "75", "3", "4", "true", "false", "0", "2026-05-04T10:30:00Z"}, rows[1])
	assert.Equal(t, "'=cmd|' /C calc'!A0", rows[2][1], "formula neutralised")
	assert.Equal(t, "true", rows[2][6])
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, results()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "r1", rows[1][0])
	assert.Equal(t, "75", rows[1][2])
	assert.Equal(t, "60", rows[2][7])
}

func TestEmptyExportHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
