package sqlxrepos

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core/timetable"
)

var (
	periodColumns = []string{"id", "school_id", "label", "sort_order", "start_time", "end_time", "is_break"}
	entryColumns  = []string{
		"e.id", "e.school_id", "e.section_id", "e.day", "e.period_id", "e.subject_name", "e.teacher_id",
		"e.room", "e.is_published", "e.published_at", "e.created_at", "e.updated_at",
	}
)

type (
	periodRow struct {
		ID        string      `db:"id"`
		SchoolID  string      `db:"school_id"`
		Label     string      `db:"label"`
		SortOrder int         `db:"sort_order"`
		StartTime null.String `db:"start_time"`
		EndTime   null.String `db:"end_time"`
		IsBreak   bool        `db:"is_break"`
	}

	entryRow struct {
		ID          string      `db:"id"`
		SchoolID    string      `db:"school_id"`
		SectionID   string      `db:"section_id"`
		Day         int         `db:"day"`
		PeriodID    string      `db:"period_id"`
		SubjectName string      `db:"subject_name"`
		TeacherID   null.String `db:"teacher_id"`
		Room        null.String `db:"room"`
		IsPublished bool        `db:"is_published"`
		PublishedAt null.Time   `db:"published_at"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}
)

func newPeriodRow(p timetable.Period) periodRow {
	return periodRow{
		ID:        p.ID,
		SchoolID:  p.SchoolID,
		Label:     p.Label,
		SortOrder: p.SortOrder,
		StartTime: null.NewString(p.StartTime, p.StartTime != ""),
		EndTime:   null.NewString(p.EndTime, p.EndTime != ""),
		IsBreak:   p.IsBreak,
	}
}

func (r periodRow) period() timetable.Period {
	return timetable.Period{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Label:     r.Label,
		SortOrder: r.SortOrder,
		StartTime: r.StartTime.String,
		EndTime:   r.EndTime.String,
		IsBreak:   r.IsBreak,
	}
}

func newEntryRow(e timetable.Entry) entryRow {
	return entryRow{
		ID:          e.ID,
		SchoolID:    e.SchoolID,
		SectionID:   e.SectionID,
		Day:         int(e.Day),
		PeriodID:    e.PeriodID,
		SubjectName: e.SubjectName,
		TeacherID:   null.StringFromPtr(e.TeacherID),
		Room:        null.StringFromPtr(e.Room),
		IsPublished: e.IsPublished,
		PublishedAt: null.TimeFromPtr(e.PublishedAt),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (r entryRow) entry() timetable.Entry {
	e := timetable.Entry{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		SectionID:   r.SectionID,
		Day:         timetable.Weekday(r.Day),
		PeriodID:    r.PeriodID,
		SubjectName: r.SubjectName,
		TeacherID:   r.TeacherID.Ptr(),
		Room:        r.Room.Ptr(),
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.PublishedAt.Valid {
		ts := r.PublishedAt.Time.UTC()
		e.PublishedAt = &ts
	}
	return e
}

func toEntries(rows []entryRow) []timetable.Entry {
	entries := make([]timetable.Entry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry()
	}
	return entries
}
