package export

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portverify/internal/model"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts csv, xlsx, yaml or yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// WriteFile writes records to path in the given format.
func WriteFile(path string, format Format, records []model.Record) error {
	if format == FormatXLSX {
		return WriteXLSX(path, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	switch format {
	case FormatYAML:
		err = WriteYAML(f, records)
	default:
		err = WriteCSV(f, records)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "export: close %s", path)
	}
	return err
}
