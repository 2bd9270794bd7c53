// Package export renders attempt results as Excel workbooks for download.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/quizforge/attempt-engine/internal/utils"
)

type ResultsExporter struct {
	logger utils.Logger
}

func NewResultsExporter(logger utils.Logger) *ResultsExporter {
	return &ResultsExporter{logger: logger.With("component", "results_exporter")}
}

// ExportAttemptReport renders one attempt as a workbook: a summary sheet and
// a per-question answer sheet decoded from the attempt's stored answers.
func (e *ResultsExporter) ExportAttemptReport(record *models.AttemptRecord, quizTitle string) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Summary"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	rows := [][]interface{}{
		{"Quiz", quizTitle},
		{"Attempt ID", record.ID},
		{"Learner ID", record.LearnerID},
		{"Status", string(record.Status)},
		{"Started At", record.StartedAt.Format("2006-01-02 15:04:05")},
	}
	if record.SubmittedAt != nil {
		rows = append(rows, []interface{}{"Submitted At", record.SubmittedAt.Format("2006-01-02 15:04:05")})
	}
	if record.FinalScore != nil {
		rows = append(rows, []interface{}{"Final Score", *record.FinalScore})
	}
	if record.EndReason != nil {
		rows = append(rows, []interface{}{"End Reason", string(*record.EndReason)})
	}

	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+1)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	if err := e.writeAnswerSheet(f, record); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	e.logger.Info("Exported attempt report", "attempt_id", record.ID)
	return buf.Bytes(), nil
}

func (e *ResultsExporter) writeAnswerSheet(f *excelize.File, record *models.AttemptRecord) error {
	if len(record.Answers) == 0 {
		return nil
	}

	var answers []models.AnswerRecord
	if err := json.Unmarshal(record.Answers, &answers); err != nil {
		return fmt.Errorf("failed to decode stored answers: %w", err)
	}

	sheetName := "Answers"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []string{"Question ID", "Answer Type", "Correct"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, answer := range answers {
		correct := ""
		if answer.IsCorrect != nil {
			correct = "No"
			if *answer.IsCorrect {
				correct = "Yes"
			}
		}
		row := []interface{}{answer.QuestionID, string(answer.Value.Kind()), correct}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}

// ExportQuizResults renders every attempt of a quiz as a results workbook,
// one row per attempt.
func (e *ResultsExporter) ExportQuizResults(quizTitle string, records []models.AttemptRecord) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Learner ID", "Attempt ID", "Status", "Started At", "Submitted At",
		"Final Score", "End Reason",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, record := range records {
		row := []interface{}{
			record.LearnerID,
			record.ID,
			string(record.Status),
			record.StartedAt.Format("2006-01-02 15:04:05"),
		}

		if record.SubmittedAt != nil {
			row = append(row, record.SubmittedAt.Format("2006-01-02 15:04:05"))
		} else {
			row = append(row, "")
		}

		if record.FinalScore != nil {
			row = append(row, *record.FinalScore)
		} else {
			row = append(row, "")
		}

		if record.EndReason != nil {
			row = append(row, string(*record.EndReason))
		} else {
			row = append(row, "")
		}

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	e.logger.Info("Exported quiz results", "quiz", quizTitle, "attempts", len(records))
	return buf.Bytes(), nil
}
