package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mida-project/mission-cli/internal/model"
)

// SheetSourceID tags records ingested from the master spreadsheet.
const SheetSourceID = "master_sheet"

// SheetSource ingests the pre-existing master spreadsheet. The header row
// supplies the raw field names, so the sheet flows through the same adapter
// mapping as every other source.
type SheetSource struct {
	path      string
	sheetName string
	skipRows  int
}

// NewSheet creates a SheetSource over an xlsx file. skipRows counts rows
// above the data, header included.
func NewSheet(path, sheetName string, skipRows int) *SheetSource {
	if skipRows < 1 {
		skipRows = 1
	}
	return &SheetSource{path: path, sheetName: sheetName, skipRows: skipRows}
}

func (s *SheetSource) Name() string { return "sheet:" + s.path }

func (s *SheetSource) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	f, err := xlsx.OpenFile(s.path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open sheet")
	}

	sheet, err := s.getSheet(f)
	if err != nil {
		return nil, err
	}

	var header []string
	var records []model.RawRecord
	fetchedAt := time.Now().UTC()

	for i, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: fetch cancelled")
		}

		cells := rowToStrings(row)
		if i == 0 {
			header = headerKeys(cells)
		}
		if i < s.skipRows {
			continue
		}

		rec := rowToRecord(header, cells, fetchedAt)
		if rec.Name == "" && len(rec.Fields) == 0 {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func (s *SheetSource) getSheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if s.sheetName != "" {
		sheet, ok := f.Sheet[s.sheetName]
		if !ok {
			return nil, eris.Errorf("source: sheet %q not found", s.sheetName)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("source: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// headerKeys lowercases header cells and replaces spaces with underscores
// so "Data Inizio" lands on the adapter's data_inizio mapping.
func headerKeys(cells []string) []string {
	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_")
	}
	return keys
}

func rowToRecord(header, cells []string, fetchedAt time.Time) model.RawRecord {
	rec := model.RawRecord{
		SourceID:  SheetSourceID,
		FetchedAt: fetchedAt,
		Fields:    make(map[string]string, len(cells)),
	}
	for j, cell := range cells {
		if j >= len(header) || header[j] == "" {
			continue
		}
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		rec.Fields[header[j]] = v
	}
	return rec
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
