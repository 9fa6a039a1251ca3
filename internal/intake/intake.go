// Package intake turns raw user input (pasted text, files, FTP downloads,
// Notion databases) into an ordered list of location names.
package intake

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// headerName is skipped when it is the first value of a tabular file, so an
// exported CSV can be fed back in.
const headerName = "originalname"

// SplitNames splits free text on newlines, commas, semicolons and tabs.
// Values are trimmed and empties dropped; order and duplicates are kept.
func SplitNames(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '\n', '\r', ',', ';', '\t':
			return true
		}
		return false
	})

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			names = append(names, f)
		}
	}
	return names
}

// ReadFile reads names from a local file. XLSX and CSV files contribute the
// first column of every row; anything else is treated as free text.
func ReadFile(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "intake: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "intake: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadText(f)
	}
}

// ReadText reads free text, dropping a leading byte order mark.
func ReadText(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(stripBOM(r))
	if err != nil {
		return nil, eris.Wrap(err, "intake: read text")
	}
	return SplitNames(string(data)), nil
}

// ReadCSV returns the first column of every CSV row.
func ReadCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var col []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "intake: read csv row")
		}
		if len(row) > 0 {
			col = append(col, row[0])
		}
	}
	return firstColumn(col), nil
}

func readXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "intake: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("intake: %s has no sheets", path)
	}

	var col []string
	for _, row := range f.Sheets[0].Rows {
		if row == nil || len(row.Cells) == 0 {
			continue
		}
		col = append(col, row.Cells[0].String())
	}
	return firstColumn(col), nil
}

// firstColumn trims values, drops empties and skips an export header.
func firstColumn(col []string) []string {
	fold := cases.Fold()
	names := make([]string, 0, len(col))
	for i, v := range col {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if i == 0 && fold.String(v) == headerName {
			continue
		}
		names = append(names, v)
	}
	return names
}

func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
