package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes results as one JSON document.
type JSONFormatter struct {
	// Compact writes the document on a single line.
	Compact bool
}

// Format encodes data. Stored values are printed verbatim, so HTML
// characters are not escaped.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !f.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
