package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mida-project/mission-cli/internal/model"
)

var exportHeader = []string{
	"Mission", "Aliases", "Framework", "Subcategory", "Status",
	"Countries", "Start Date", "End Date", "Personnel", "Cost",
	"Validated", "Version", "Sources",
}

// ExportXLSX writes the canonical dataset as a spreadsheet, one mission per
// row. The file is written atomically via a temp file in the same
// directory.
func ExportXLSX(path string, missions []*model.MissionRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Missions")
	if err != nil {
		return eris.Wrap(err, "report: add export sheet")
	}

	row := sheet.AddRow()
	for _, h := range exportHeader {
		row.AddCell().SetString(h)
	}

	for _, m := range missions {
		row := sheet.AddRow()
		row.AddCell().SetString(m.CanonicalName)
		row.AddCell().SetString(strings.Join(m.Aliases, "; "))
		row.AddCell().SetString(string(m.Framework))
		row.AddCell().SetString(m.Subcategory)
		row.AddCell().SetString(string(m.Status))
		row.AddCell().SetString(strings.Join(m.Countries, ", "))
		row.AddCell().SetString(formatDate(m.StartDate))
		row.AddCell().SetString(formatDate(m.EndDate))
		if m.Personnel != nil {
			row.AddCell().SetInt(*m.Personnel)
		} else {
			row.AddCell().SetString("")
		}
		if m.Cost != nil {
			row.AddCell().SetFloat(*m.Cost)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(fmt.Sprintf("%t", m.Validated))
		row.AddCell().SetInt(m.Version)
		row.AddCell().SetString(strings.Join(sourceIDs(m), ", "))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "report: create export dir")
	}
	tmp := path + ".tmp"
	if err := f.Save(tmp); err != nil {
		return eris.Wrap(err, "report: save export")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "report: finalize export")
	}
	return nil
}

func formatDate(d model.Date) string {
	if !d.Known {
		return ""
	}
	s := d.Time.Format("2006-01-02")
	if d.Approx {
		s = "~" + s
	}
	return s
}

func sourceIDs(m *model.MissionRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range m.Sources {
		if !seen[s.SourceID] {
			seen[s.SourceID] = true
			ids = append(ids, s.SourceID)
		}
	}
	return ids
}
