package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"deskops/internal/bulk"
	"deskops/internal/items"
)

func TestExportWritesWorkbook(t *testing.T) {
	w := NewWorkbookWriter(t.TempDir(), nil)

	now := time.Now()
	path, err := w.Export(bulk.ItemTypePosition, []items.Item{
		{ID: "p-1", Symbol: "TASC", Status: "open", Enabled: true, Tags: []string{"core", "watch"}, Quantity: 100, Price: 1.25, CreatedAt: now, UpdatedAt: now},
		{ID: "p-2", Symbol: "BBOB", Status: "closed", CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
	assert.Contains(t, path, "position-export-")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Positions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "p-1", rows[1][0])
	assert.Equal(t, "core, watch", rows[1][4])
	assert.Equal(t, "p-2", rows[2][0])
}

func TestExportEmptyList(t *testing.T) {
	w := NewWorkbookWriter(t.TempDir(), nil)

	path, err := w.Export(bulk.ItemTypeAlert, nil)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Alerts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Positions", sheetName(bulk.ItemTypePosition))
	assert.Equal(t, "Items", sheetName(""))
}
