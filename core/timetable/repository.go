package timetable

import (
	"context"
	"time"

	"github.com/trezcool/ratiba/core"
)

type (
	// CatalogRepository reads and writes the school reference data.
	CatalogRepository interface {
		QueryClasses(ctx context.Context, schoolID string) ([]Class, error)
		QuerySections(ctx context.Context, schoolID string) ([]Section, error)
		QueryPeriods(ctx context.Context, schoolID string) ([]Period, error)
		QueryTeachers(ctx context.Context, schoolID string) ([]Teacher, error)
		QuerySubjects(ctx context.Context, schoolID string) ([]Subject, error)
		GetSection(ctx context.Context, schoolID, sectionID string) (Section, error)
		QuerySectionSubjects(ctx context.Context, sectionID string) ([]SectionSubject, error)
		QueryTeacherAssignments(ctx context.Context, sectionID string) ([]TeacherAssignment, error)

		CreateClass(ctx context.Context, class Class) (Class, error)
		CreateSection(ctx context.Context, section Section) (Section, error)
		CreatePeriod(ctx context.Context, period Period) (Period, error)
		CreateSubject(ctx context.Context, subject Subject) (Subject, error)
		CreateTeacher(ctx context.Context, teacher Teacher) (Teacher, error)
		LinkSubject(ctx context.Context, link SectionSubject) error
		AssignTeacher(ctx context.Context, assignment TeacherAssignment) error
		DeletePeriod(ctx context.Context, schoolID, periodID string) error
	}

	// EntryRepository persists timetable entries.
	EntryRepository interface {
		EntriesForSection(ctx context.Context, sectionID string) ([]Entry, error)
		AllSchoolEntries(ctx context.Context, schoolID string) ([]Entry, error)
		GetEntry(ctx context.Context, id string) (Entry, error)

		// ReplaceSlot atomically replaces the occupant of `key`.
		// build receives the current occupant (nil when the slot is empty) and returns the new entry.
		ReplaceSlot(ctx context.Context, key SlotKey, build func(existing *Entry) (Entry, error)) (Entry, error)
		// DeleteSlot removes the occupant of `key`, reporting whether there was one.
		DeleteSlot(ctx context.Context, key SlotKey) (bool, error)
		UpdateEntryDetails(ctx context.Context, id string, patch DetailsPatch, updatedAt time.Time) (Entry, error)
		// SetSectionPublished flips every entry of the section and returns how many entries changed.
		SetSectionPublished(ctx context.Context, sectionID string, published bool, at time.Time) (int, error)
	}

	Repository interface {
		CatalogRepository
		EntryRepository
	}

	// CatalogCache stores loaded catalogs per school.
	CatalogCache interface {
		Get(ctx context.Context, schoolID string) (Catalog, bool, error)
		Set(ctx context.Context, catalog Catalog) error
		Invalidate(ctx context.Context, schoolID string) error
	}
)

// DetailsPatch changes the teacher and room of an entry.
// A nil field is left untouched; a pointer to "" clears the field.
type DetailsPatch struct {
	TeacherID *string `json:"teacher_id"`
	Room      *string `json:"room"`
}

func (p DetailsPatch) Apply(e *Entry) {
	if p.TeacherID != nil {
		e.TeacherID = core.StringPtr(*p.TeacherID)
	}
	if p.Room != nil {
		e.Room = core.StringPtr(*p.Room)
	}
}

func (p DetailsPatch) IsEmpty() bool {
	return p.TeacherID == nil && p.Room == nil
}
