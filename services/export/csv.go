package exportsvc

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/timetable"
)

// WriteCSV writes one line per entry, ordered by day then period.
func WriteCSV(w io.Writer, tt Timetable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(timetable.FlatRowHeaders); err != nil {
		return errors.Wrap(err, "writing csv headers")
	}
	for _, row := range tt.flatRows() {
		if err := cw.Write(row.Values()); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
