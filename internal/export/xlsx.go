package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/portverify/internal/model"
)

// SheetName is the worksheet WriteXLSX creates.
const SheetName = "Locations"

var xlsxHeader = []string{
	"originalName", "code", "localizedName", "countryName", "remarks", "status", "sources",
}

// WriteXLSX saves records to an XLSX workbook at path. Sources are written
// one URI per line.
func WriteXLSX(path string, records []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: xlsx add sheet")
	}

	addRow(sheet, xlsxHeader)
	for _, r := range records {
		addRow(sheet, []string{
			r.OriginalName, r.Code, r.LocalizedName, r.CountryName, r.Remarks,
			string(r.Status), joinSources(r.Sources),
		})
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: xlsx save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func joinSources(sources []model.Source) string {
	uris := make([]string, 0, len(sources))
	for _, s := range sources {
		uris = append(uris, s.URI)
	}
	return strings.Join(uris, "\n")
}
