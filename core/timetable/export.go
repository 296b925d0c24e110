package timetable

import "sort"

// Grid is a section timetable keyed by slot.
type Grid struct {
	Periods []Period       `json:"periods"`
	Cells   map[Slot]Entry `json:"-"`
}

// At returns the entry in the (day, period) cell.
func (g Grid) At(day Weekday, periodID string) (Entry, bool) {
	e, ok := g.Cells[Slot{Day: day, PeriodID: periodID}]
	return e, ok
}

// Rows renders the grid as one row per period, each with a cell per requested day.
// Cells of break periods and empty slots are nil.
func (g Grid) Rows(days []Weekday) []GridRow {
	rows := make([]GridRow, 0, len(g.Periods))
	for _, p := range g.Periods {
		row := GridRow{Period: p, Cells: make([]*Entry, len(days))}
		for i, d := range days {
			if e, ok := g.At(d, p.ID); ok && !p.IsBreak {
				e := e
				row.Cells[i] = &e
			}
		}
		rows = append(rows, row)
	}
	return rows
}

type GridRow struct {
	Period Period   `json:"period"`
	Cells  []*Entry `json:"cells"`
}

// ToGrid projects entries onto their slots. Periods are ordered by sort order.
func ToGrid(periods []Period, entries []Entry) Grid {
	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	SortPeriods(sorted)

	g := Grid{Periods: sorted, Cells: make(map[Slot]Entry, len(entries))}
	for _, e := range entries {
		g.Cells[e.Slot()] = e
	}
	return g
}

// FlatRow is one line of a flat timetable export.
type FlatRow struct {
	Day         Weekday `json:"day"`
	DayName     string  `json:"day_name"`
	PeriodLabel string  `json:"period"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Subject     string  `json:"subject"`
	Teacher     string  `json:"teacher"`
	Room        string  `json:"room"`
}

// FlatRowHeaders are the column titles matching FlatRow.Values.
var FlatRowHeaders = []string{"Day", "Period", "Start", "End", "Subject", "Teacher", "Room"}

func (r FlatRow) Values() []string {
	return []string{r.DayName, r.PeriodLabel, r.StartTime, r.EndTime, r.Subject, r.Teacher, r.Room}
}

// ToFlatRows lists entries ordered by day then period sort order.
// teacherLabel resolves teacher IDs for display; entries on unknown periods are dropped.
func ToFlatRows(periods []Period, entries []Entry, teacherLabel func(id string) string) []FlatRow {
	idx := NewPeriodIndex(periods)

	type keyed struct {
		row   FlatRow
		order int
		id    string
	}
	items := make([]keyed, 0, len(entries))
	for _, e := range entries {
		p, ok := idx[e.PeriodID]
		if !ok {
			continue
		}
		row := FlatRow{
			Day:         e.Day,
			DayName:     e.Day.String(),
			PeriodLabel: p.Label,
			StartTime:   p.StartTime,
			EndTime:     p.EndTime,
			Subject:     e.SubjectName,
		}
		if e.TeacherID != nil {
			row.Teacher = *e.TeacherID
			if teacherLabel != nil {
				row.Teacher = teacherLabel(*e.TeacherID)
			}
		}
		if e.Room != nil {
			row.Room = *e.Room
		}
		items = append(items, keyed{row: row, order: p.SortOrder, id: p.ID})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.row.Day != b.row.Day {
			return a.row.Day < b.row.Day
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.id < b.id
	})

	rows := make([]FlatRow, len(items))
	for i, it := range items {
		rows[i] = it.row
	}
	return rows
}
