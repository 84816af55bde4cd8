package visitlog

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/starford/passport/internal/models"
)

// ExportFilename is the download name used for exported logs.
const ExportFilename = "africax_restaurants.csv"

// Export writes visits as CSV with the canonical header and formatting.
func Export(w io.Writer, visits []models.Visit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return err
	}
	for _, v := range visits {
		if err := cw.Write(canonicalRow(v)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportBytes is Export into memory.
func ExportBytes(visits []models.Visit) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, visits); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
