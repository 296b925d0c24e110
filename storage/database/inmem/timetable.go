package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core/timetable"
)

type timetableRepository struct {
	db *DB
}

var _ timetable.Repository = (*timetableRepository)(nil)

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db}
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// Catalog

func (repo *timetableRepository) QueryClasses(_ context.Context, schoolID string) ([]timetable.Class, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	classes := make([]timetable.Class, 0)
	for _, c := range t.classes {
		if c.SchoolID == schoolID {
			classes = append(classes, *c)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (repo *timetableRepository) QuerySections(_ context.Context, schoolID string) ([]timetable.Section, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	sections := make([]timetable.Section, 0)
	for _, s := range t.sections {
		if s.SchoolID == schoolID {
			sections = append(sections, *s)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].ClassID != sections[j].ClassID {
			return sections[i].ClassID < sections[j].ClassID
		}
		return sections[i].Name < sections[j].Name
	})
	return sections, nil
}

func (repo *timetableRepository) QueryPeriods(_ context.Context, schoolID string) ([]timetable.Period, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	periods := make([]timetable.Period, 0)
	for _, p := range t.periods {
		if p.SchoolID == schoolID {
			periods = append(periods, *p)
		}
	}
	timetable.SortPeriods(periods)
	return periods, nil
}

func (repo *timetableRepository) QueryTeachers(_ context.Context, schoolID string) ([]timetable.Teacher, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	teachers := make([]timetable.Teacher, 0)
	for _, tc := range t.teachers {
		if tc.SchoolID == schoolID {
			teachers = append(teachers, *tc)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].Name < teachers[j].Name })
	return teachers, nil
}

func (repo *timetableRepository) QuerySubjects(_ context.Context, schoolID string) ([]timetable.Subject, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	subjects := make([]timetable.Subject, 0)
	for _, s := range t.subjects {
		if s.SchoolID == schoolID {
			subjects = append(subjects, *s)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *timetableRepository) GetSection(_ context.Context, schoolID, sectionID string) (timetable.Section, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Section{}, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	if s, ok := t.sections[sectionID]; ok && s.SchoolID == schoolID {
		return *s, nil
	}
	return timetable.Section{}, timetable.ErrNotFound
}

func (repo *timetableRepository) QuerySectionSubjects(_ context.Context, sectionID string) ([]timetable.SectionSubject, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	links := make([]timetable.SectionSubject, 0)
	for l := range t.links {
		if l.SectionID == sectionID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].SubjectID < links[j].SubjectID })
	return links, nil
}

func (repo *timetableRepository) QueryTeacherAssignments(_ context.Context, sectionID string) ([]timetable.TeacherAssignment, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	t := repo.db.catalog
	t.RLock()
	defer t.RUnlock()

	assignments := make([]timetable.TeacherAssignment, 0)
	for k, teacherID := range t.assignments {
		if k.sectionID == sectionID {
			assignments = append(assignments, timetable.TeacherAssignment{
				SectionID: k.sectionID,
				SubjectID: k.subjectID,
				TeacherID: teacherID,
			})
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].SubjectID < assignments[j].SubjectID })
	return assignments, nil
}

func (repo *timetableRepository) CreateClass(_ context.Context, class timetable.Class) (timetable.Class, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Class{}, err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	class.ID = newID(class.ID)
	t.classes[class.ID] = &class
	return class, nil
}

func (repo *timetableRepository) CreateSection(_ context.Context, section timetable.Section) (timetable.Section, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Section{}, err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	if _, ok := t.classes[section.ClassID]; !ok {
		return timetable.Section{}, timetable.ErrNotFound
	}
	section.ID = newID(section.ID)
	t.sections[section.ID] = &section
	return section, nil
}

func (repo *timetableRepository) CreatePeriod(_ context.Context, period timetable.Period) (timetable.Period, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Period{}, err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	period.ID = newID(period.ID)
	t.periods[period.ID] = &period
	return period, nil
}

func (repo *timetableRepository) CreateSubject(_ context.Context, subject timetable.Subject) (timetable.Subject, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Subject{}, err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	subject.ID = newID(subject.ID)
	t.subjects[subject.ID] = &subject
	return subject, nil
}

func (repo *timetableRepository) CreateTeacher(_ context.Context, teacher timetable.Teacher) (timetable.Teacher, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Teacher{}, err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	teacher.ID = newID(teacher.ID)
	t.teachers[teacher.ID] = &teacher
	return teacher, nil
}

func (repo *timetableRepository) LinkSubject(_ context.Context, link timetable.SectionSubject) error {
	if err := repo.db.failure(); err != nil {
		return err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	if _, ok := t.sections[link.SectionID]; !ok {
		return timetable.ErrNotFound
	}
	if _, ok := t.subjects[link.SubjectID]; !ok {
		return timetable.ErrNotFound
	}
	t.links[link] = struct{}{}
	return nil
}

func (repo *timetableRepository) AssignTeacher(_ context.Context, ta timetable.TeacherAssignment) error {
	if err := repo.db.failure(); err != nil {
		return err
	}
	t := repo.db.catalog
	t.Lock()
	defer t.Unlock()

	if _, ok := t.teachers[ta.TeacherID]; !ok {
		return timetable.ErrNotFound
	}
	// one teacher per (section, subject): the last assignment wins
	t.assignments[sectionSubject{sectionID: ta.SectionID, subjectID: ta.SubjectID}] = ta.TeacherID
	return nil
}

func (repo *timetableRepository) DeletePeriod(_ context.Context, schoolID, periodID string) error {
	if err := repo.db.failure(); err != nil {
		return err
	}
	ct, et := repo.db.catalog, repo.db.entry
	ct.Lock()
	defer ct.Unlock()
	et.Lock()
	defer et.Unlock()

	p, ok := ct.periods[periodID]
	if !ok || p.SchoolID != schoolID {
		return timetable.ErrNotFound
	}
	delete(ct.periods, periodID)

	// cascade
	for id, e := range et.table {
		if e.PeriodID == periodID {
			delete(et.slots, sectionSlot{sectionID: e.SectionID, slot: e.Slot()})
			delete(et.table, id)
		}
	}
	return nil
}

// Entries

func (repo *timetableRepository) sortEntries(entries []timetable.Entry) {
	ct := repo.db.catalog
	ct.RLock()
	orders := make(map[string]int, len(ct.periods))
	for id, p := range ct.periods {
		orders[id] = p.SortOrder
	}
	ct.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if orders[a.PeriodID] != orders[b.PeriodID] {
			return orders[a.PeriodID] < orders[b.PeriodID]
		}
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		return a.ID < b.ID
	})
}

func (repo *timetableRepository) queryEntries(match func(e *timetable.Entry) bool) []timetable.Entry {
	et := repo.db.entry
	et.RLock()
	entries := make([]timetable.Entry, 0)
	for _, e := range et.table {
		if match(e) {
			entries = append(entries, *e)
		}
	}
	et.RUnlock()

	repo.sortEntries(entries)
	return entries
}

func (repo *timetableRepository) EntriesForSection(_ context.Context, sectionID string) ([]timetable.Entry, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	return repo.queryEntries(func(e *timetable.Entry) bool { return e.SectionID == sectionID }), nil
}

func (repo *timetableRepository) AllSchoolEntries(_ context.Context, schoolID string) ([]timetable.Entry, error) {
	if err := repo.db.failure(); err != nil {
		return nil, err
	}
	return repo.queryEntries(func(e *timetable.Entry) bool { return e.SchoolID == schoolID }), nil
}

func (repo *timetableRepository) GetEntry(_ context.Context, id string) (timetable.Entry, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Entry{}, err
	}
	et := repo.db.entry
	et.RLock()
	defer et.RUnlock()

	if e, ok := et.table[id]; ok {
		return *e, nil
	}
	return timetable.Entry{}, timetable.ErrNotFound
}

func (repo *timetableRepository) ReplaceSlot(
	_ context.Context,
	key timetable.SlotKey,
	build func(existing *timetable.Entry) (timetable.Entry, error),
) (timetable.Entry, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Entry{}, err
	}
	ct, et := repo.db.catalog, repo.db.entry
	ct.RLock()
	defer ct.RUnlock()
	et.Lock()
	defer et.Unlock()

	// foreign keys
	if s, ok := ct.sections[key.SectionID]; !ok || s.SchoolID != key.SchoolID {
		return timetable.Entry{}, timetable.ErrInvalidTarget
	}
	if p, ok := ct.periods[key.PeriodID]; !ok || p.SchoolID != key.SchoolID {
		return timetable.Entry{}, timetable.ErrInvalidTarget
	}

	sk := sectionSlot{sectionID: key.SectionID, slot: key.Slot}
	var existing *timetable.Entry
	if id, ok := et.slots[sk]; ok {
		e := *et.table[id]
		existing = &e
	}

	entry, err := build(existing)
	if err != nil {
		return timetable.Entry{}, err
	}
	if _, taken := et.table[entry.ID]; taken && (existing == nil || existing.ID != entry.ID) {
		return timetable.Entry{}, timetable.ErrSlotConflict
	}

	if existing != nil {
		delete(et.table, existing.ID)
	}
	et.table[entry.ID] = &entry
	et.slots[sk] = entry.ID
	return entry, nil
}

func (repo *timetableRepository) DeleteSlot(_ context.Context, key timetable.SlotKey) (bool, error) {
	if err := repo.db.failure(); err != nil {
		return false, err
	}
	et := repo.db.entry
	et.Lock()
	defer et.Unlock()

	sk := sectionSlot{sectionID: key.SectionID, slot: key.Slot}
	id, ok := et.slots[sk]
	if !ok {
		return false, nil
	}
	delete(et.slots, sk)
	delete(et.table, id)
	return true, nil
}

func (repo *timetableRepository) UpdateEntryDetails(
	_ context.Context,
	id string,
	patch timetable.DetailsPatch,
	updatedAt time.Time,
) (timetable.Entry, error) {
	if err := repo.db.failure(); err != nil {
		return timetable.Entry{}, err
	}
	et := repo.db.entry
	et.Lock()
	defer et.Unlock()

	e, ok := et.table[id]
	if !ok {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	patch.Apply(e)
	e.UpdatedAt = updatedAt
	return *e, nil
}

func (repo *timetableRepository) SetSectionPublished(
	_ context.Context,
	sectionID string,
	published bool,
	at time.Time,
) (int, error) {
	if err := repo.db.failure(); err != nil {
		return 0, err
	}
	et := repo.db.entry
	et.Lock()
	defer et.Unlock()

	var n int
	for _, e := range et.table {
		if e.SectionID != sectionID {
			continue
		}
		if !published && !e.IsPublished {
			continue
		}
		e.IsPublished = published
		if published {
			ts := at
			e.PublishedAt = &ts
		} else {
			e.PublishedAt = nil
		}
		e.UpdatedAt = at
		n++
	}
	return n, nil
}
