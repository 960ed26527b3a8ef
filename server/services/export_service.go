package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"ckuserver/database"
	apperrors "ckuserver/server/errors"
)

// ExportFormat selects the serialization of an export download.
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
)

// ParseExportFormat validates a format query parameter. Empty defaults
// to JSON.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(raw) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatExcel, "xlsx":
		return FormatExcel, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown export format %q", raw), nil)
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// FileName returns a download file name for the format.
func (f ExportFormat) FileName() string {
	switch f {
	case FormatCSV:
		return "submissions.csv"
	case FormatExcel:
		return "submissions.xlsx"
	default:
		return "submissions.json"
	}
}

// ExportService streams stored submissions as JSON, CSV or Excel.
type ExportService struct {
	db *database.DB
}

// NewExportService creates the exporter. Returns an error when db is nil.
func NewExportService(db *database.DB) (*ExportService, error) {
	if db == nil {
		return nil, apperrors.NewInternalError("db cannot be nil", nil)
	}
	return &ExportService{db: db}, nil
}

var exportHeaders = []string{
	"Submission ID", "Template ID", "Template Title", "Template Version",
	"Status", "Submitted By", "User Name", "User Email",
	"Planta", "Temporada", "Tipo Fruta", "Created At", "Updated At",
}

func exportRow(rec database.SubmissionRecord) []string {
	return []string{
		rec.SubmissionID,
		rec.TemplateID,
		rec.TemplateTitle,
		rec.TemplateVersion,
		rec.Status,
		rec.SubmittedBy,
		rec.UserName,
		rec.UserEmail,
		rec.Planta,
		rec.Temporada,
		rec.TipoFruta,
		rec.CreatedAt,
		rec.UpdatedAt,
	}
}

// Export writes all submissions matching the filter to w in the given
// format.
func (e *ExportService) Export(ctx context.Context, w io.Writer, format ExportFormat, filter database.SubmissionFilter) error {
	records, total, err := e.db.ListSubmissions(ctx, filter)
	if err != nil {
		return apperrors.NewPersistenceError("failed to fetch submissions for export", err)
	}

	switch format {
	case FormatCSV:
		return e.writeCSV(w, records)
	case FormatExcel:
		return e.writeExcel(w, records)
	default:
		return e.writeJSON(w, records, total)
	}
}

func (e *ExportService) writeJSON(w io.Writer, records []database.SubmissionRecord, total int) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	result := map[string]interface{}{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"total":       total,
		"items":       records,
	}

	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func (e *ExportService) writeCSV(w io.Writer, records []database.SubmissionRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(exportHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, rec := range records {
		if err := writer.Write(exportRow(rec)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

func (e *ExportService) writeExcel(w io.Writer, records []database.SubmissionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Submissions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, rec := range records {
		for colIdx, value := range exportRow(rec) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range exportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	f.SetActiveSheet(index)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}
