package exportsvc

import (
	"fmt"
	"io"
	"strings"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
}

// ErrUnknownFormat is returned for formats other than csv, xlsx and pdf.
var ErrUnknownFormat = fmt.Errorf("unknown export format, expected one of %s, %s, %s", FormatCSV, FormatXLSX, FormatPDF)

// ParseFormat reads a format name, case-insensitively. Blank means csv.
func ParseFormat(s string) (Format, error) {
	f := Format(core.CleanString(s, true))
	if f == "" {
		return FormatCSV, nil
	}
	if _, ok := contentTypes[f]; !ok {
		return "", ErrUnknownFormat
	}
	return f, nil
}

func (f Format) ContentType() string {
	return contentTypes[f]
}

// Filename builds a file name out of `title`, e.g. "Grade 1 • A" -> "grade-1-a.pdf".
func (f Format) Filename(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "timetable"
	}
	return name + "." + string(f)
}

// Timetable is the printable timetable of one section.
type Timetable struct {
	Title       string // "Class • Section"
	Days        []timetable.Weekday
	Periods     []timetable.Period
	Entries     []timetable.Entry
	TeacherName func(id string) string // optional
}

func (tt Timetable) days() []timetable.Weekday {
	if len(tt.Days) == 0 {
		return timetable.WorkingDays
	}
	return tt.Days
}

func (tt Timetable) grid() timetable.Grid {
	return timetable.ToGrid(tt.Periods, tt.Entries)
}

func (tt Timetable) flatRows() []timetable.FlatRow {
	return timetable.ToFlatRows(tt.Periods, tt.Entries, tt.TeacherName)
}

func (tt Timetable) teacher(e *timetable.Entry) string {
	if e.TeacherID == nil {
		return ""
	}
	if tt.TeacherName == nil {
		return *e.TeacherID
	}
	return tt.TeacherName(*e.TeacherID)
}

// cellLines is the content of a grid cell: subject, then teacher and room when set.
func (tt Timetable) cellLines(e *timetable.Entry) []string {
	if e == nil {
		return nil
	}
	lines := []string{e.SubjectName}
	if t := tt.teacher(e); t != "" {
		lines = append(lines, t)
	}
	if e.Room != nil {
		lines = append(lines, *e.Room)
	}
	return lines
}

func periodHeading(p timetable.Period) string {
	if p.StartTime == "" {
		return p.Label
	}
	return fmt.Sprintf("%s (%s-%s)", p.Label, p.StartTime, p.EndTime)
}

// Render writes tt to w in format f.
func Render(w io.Writer, f Format, tt Timetable) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, tt)
	case FormatXLSX:
		return WriteXLSX(w, tt)
	case FormatPDF:
		return WritePDF(w, tt)
	default:
		return ErrUnknownFormat
	}
}
