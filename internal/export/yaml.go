package export

import (
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/portverify/internal/model"
)

// WriteYAML writes the full records, sources included, as a YAML sequence.
func WriteYAML(w io.Writer, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "export: yaml encode")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "export: yaml close")
	}
	return nil
}
