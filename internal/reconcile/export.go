package reconcile

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// csvHeader is the fixed output header, written once before any data row.
var csvHeader = []string{
	"customer_id",
	"service_id",
	"tariff",
	"router",
	"street",
	"town",
	"latitude",
	"longitude",
}

// CSVWriter writes reconciled rows to a tabular destination.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a writer and emits the header row immediately.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if err := cw.w.Write(csvHeader); err != nil {
		return nil, eris.Wrap(err, "export: write header")
	}
	return cw, nil
}

// Write emits one data row.
func (c *CSVWriter) Write(row Row) error {
	record := []string{
		strconv.Itoa(row.CustomerID),
		strconv.Itoa(row.ServiceID),
		row.Tariff,
		row.Router,
		row.Street,
		row.Town,
		row.Lat,
		row.Lon,
	}
	if err := c.w.Write(record); err != nil {
		return eris.Wrap(err, "export: write row")
	}
	return nil
}

// Flush flushes buffered rows and reports any deferred write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}
	return nil
}

// formatDegrees renders a decimal-degree value with the shortest exact
// representation, matching the stored marker format.
func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
