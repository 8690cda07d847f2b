// Package export renders selected items into Excel workbooks. It backs the
// engine's export action; the artifact lands in the configured export
// directory, one workbook per export chunk.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"deskops/internal/bulk"
	"deskops/internal/items"
)

// WorkbookWriter writes .xlsx exports.
type WorkbookWriter struct {
	dir    string
	logger *slog.Logger
}

// NewWorkbookWriter creates a writer targeting dir.
func NewWorkbookWriter(dir string, logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{
		dir:    dir,
		logger: logger.With(slog.String("component", "export.workbook")),
	}
}

var headers = []string{"ID", "Symbol", "Status", "Enabled", "Tags", "Notes", "Quantity", "Price", "Created At", "Updated At"}

// Export writes one workbook for the given items and returns its path.
// Implements items.Exporter.
func (w *WorkbookWriter) Export(itemType bulk.ItemType, toExport []items.Item) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(itemType)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, item := range toExport {
		values := []any{
			item.ID,
			item.Symbol,
			item.Status,
			item.Enabled,
			strings.Join(item.Tags, ", "),
			item.Notes,
			item.Quantity,
			item.Price,
			item.CreatedAt.Format(time.RFC3339),
			item.UpdatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return "", fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s-export-%s.xlsx", itemType, time.Now().Format("20060102-150405.000")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("export_written",
		slog.String("item_type", string(itemType)),
		slog.Int("item_count", len(toExport)),
		slog.String("path", path))
	return path, nil
}

// sheetName maps the item type to its sheet title.
func sheetName(itemType bulk.ItemType) string {
	name := string(itemType)
	if name == "" {
		return "Items"
	}
	return strings.ToUpper(name[:1]) + name[1:] + "s"
}
