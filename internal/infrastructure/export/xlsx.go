// Package export renders the audit trail as a spreadsheet.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/domain/entity"
)

const (
	sheetName = "Audit"

	// XLSXContentType is the MIME type of the exported workbook
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []interface{}{
	"Time (UTC)", "Subject", "Subject ID", "Action", "Actor",
	"From Status", "To Status", "Notes", "Details",
}

// XLSXExporter implements port.AuditExporter with excelize
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates an XLSX audit exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType returns the MIME type of the output
func (x *XLSXExporter) ContentType() string {
	return XLSXContentType
}

// Export writes one row per entry after a header row
func (x *XLSXExporter) Export(ctx context.Context, entries []*entity.AuditEntry, w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := x.writeHeader(file); err != nil {
		return err
	}

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details of %s: %w", e.ID, err)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.SubjectKind),
			e.SubjectID,
			string(e.Action),
			e.ActorID,
			e.PreviousStatus,
			e.NewStatus,
			e.Notes,
			string(details),
		}
		if err := file.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("Audit trail exported", zap.Int("entries", len(entries)))
	return nil
}

func (x *XLSXExporter) writeHeader(file *excelize.File) error {
	if err := file.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := file.SetCellStyle(sheetName, "A1", "I1", style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	if err := file.SetColWidth(sheetName, "A", "A", 22); err != nil {
		return err
	}
	if err := file.SetColWidth(sheetName, "H", "I", 48); err != nil {
		return err
	}
	return file.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
