package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeSheet(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Missioni")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "master.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestSheetSource_Fetch(t *testing.T) {
	path := writeSheet(t, [][]string{
		{"Nome Missione", "Paese", "Data Inizio", "Personale Totale"},
		{"EUTM Mali", "Mali", "18/02/2013", "200"},
		{"UNIFIL", "Libano", "", "1100"},
	})

	records, err := NewSheet(path, "Missioni", 1).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, SheetSourceID, rec.SourceID)
	assert.False(t, rec.FetchedAt.IsZero())
	assert.Equal(t, "EUTM Mali", rec.Fields["nome_missione"])
	assert.Equal(t, "Mali", rec.Fields["paese"])
	assert.Equal(t, "18/02/2013", rec.Fields["data_inizio"])
	assert.Equal(t, "200", rec.Fields["personale_totale"])

	// Empty cells are dropped from the field bag.
	_, ok := records[1].Fields["data_inizio"]
	assert.False(t, ok)
}

func TestSheetSource_SkipRows(t *testing.T) {
	path := writeSheet(t, [][]string{
		{"Nome Missione", "Paese"},
		{"titles repeated, not data", ""},
		{"EUTM Mali", "Mali"},
	})

	records, err := NewSheet(path, "", 2).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "EUTM Mali", records[0].Fields["nome_missione"])
}

func TestSheetSource_SkipsEmptyRows(t *testing.T) {
	path := writeSheet(t, [][]string{
		{"Nome Missione", "Paese"},
		{"", ""},
		{"KFOR", "Kosovo"},
	})

	records, err := NewSheet(path, "", 1).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "KFOR", records[0].Fields["nome_missione"])
}

func TestSheetSource_UnknownSheet(t *testing.T) {
	path := writeSheet(t, [][]string{{"Nome Missione"}})

	_, err := NewSheet(path, "Altro", 1).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSheetSource_MissingFile(t *testing.T) {
	_, err := NewSheet(filepath.Join(t.TempDir(), "absent.xlsx"), "", 1).Fetch(context.Background())
	require.Error(t, err)
}
