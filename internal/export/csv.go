// Package export renders ledger records as CSV, XLSX and YAML reports.
package export

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/portverify/internal/model"
)

// csvRow is the on-disk shape of one exported record.
type csvRow struct {
	OriginalName  string `csv:"originalName"`
	Code          string `csv:"code"`
	LocalizedName string `csv:"localizedName"`
	CountryName   string `csv:"countryName"`
	Remarks       string `csv:"remarks"`
}

// WriteCSV writes every record, whatever its status, as UTF-8 CSV with a
// byte order mark so spreadsheet tools detect the encoding.
func WriteCSV(w io.Writer, records []model.Record) error {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bw)

	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "export: csv header")
	}
	for i := range records {
		r := &records[i]
		if err := enc.Encode(csvRow{
			OriginalName:  r.OriginalName,
			Code:          r.Code,
			LocalizedName: r.LocalizedName,
			CountryName:   r.CountryName,
			Remarks:       r.Remarks,
		}); err != nil {
			return eris.Wrapf(err, "export: csv row %d", i)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: csv flush")
	}
	if err := bw.Close(); err != nil {
		return eris.Wrap(err, "export: csv close")
	}
	return nil
}
