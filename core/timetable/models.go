package timetable

import (
	"sort"
	"time"
)

// Weekday is the day-of-week of a slot, 0 = Monday ... 6 = Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return ""
	}
	return dayNames[d]
}

// WorkingDays lists Monday to Friday.
var WorkingDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// Weekdays converts configured day numbers, skipping invalid ones. No valid day means WorkingDays.
func Weekdays(days []int) []Weekday {
	wd := make([]Weekday, 0, len(days))
	for _, d := range days {
		if day := Weekday(d); day.Valid() {
			wd = append(wd, day)
		}
	}
	if len(wd) == 0 {
		return WorkingDays
	}
	return wd
}

type (
	Period struct {
		ID        string `json:"id" db:"id"`
		SchoolID  string `json:"school_id" db:"school_id"`
		Label     string `json:"label" db:"label"`
		SortOrder int    `json:"sort_order" db:"sort_order"`
		StartTime string `json:"start_time,omitempty" db:"start_time"` // HH:MM
		EndTime   string `json:"end_time,omitempty" db:"end_time"`     // HH:MM
		IsBreak   bool   `json:"is_break" db:"is_break"`
	}

	Class struct {
		ID       string `json:"id" db:"id"`
		SchoolID string `json:"school_id" db:"school_id"`
		Name     string `json:"name" db:"name"`
	}

	Section struct {
		ID       string `json:"id" db:"id"`
		SchoolID string `json:"school_id" db:"school_id"`
		ClassID  string `json:"class_id" db:"class_id"`
		Name     string `json:"name" db:"name"`
	}

	Subject struct {
		ID       string `json:"id" db:"id"`
		SchoolID string `json:"school_id" db:"school_id"`
		Name     string `json:"name" db:"name"`
	}

	// SectionSubject links a Subject to a Section, making it eligible for the section's timetable.
	SectionSubject struct {
		SectionID string `json:"section_id" db:"section_id"`
		SubjectID string `json:"subject_id" db:"subject_id"`
	}

	Teacher struct {
		ID       string `json:"id" db:"id"`
		SchoolID string `json:"school_id" db:"school_id"`
		Name     string `json:"name" db:"name"`
	}

	// TeacherAssignment is the default teacher of a subject in a section.
	TeacherAssignment struct {
		SectionID string `json:"section_id" db:"section_id"`
		SubjectID string `json:"subject_id" db:"subject_id"`
		TeacherID string `json:"teacher_id" db:"teacher_id"`
	}

	Entry struct {
		ID          string     `json:"id"`
		SchoolID    string     `json:"school_id"`
		SectionID   string     `json:"section_id"`
		Day         Weekday    `json:"day"`
		PeriodID    string     `json:"period_id"`
		SubjectName string     `json:"subject_name"`
		TeacherID   *string    `json:"teacher_id"`
		Room        *string    `json:"room"`
		IsPublished bool       `json:"is_published"`
		PublishedAt *time.Time `json:"published_at"`
		CreatedAt   time.Time  `json:"created_at"`
		UpdatedAt   time.Time  `json:"updated_at"`
	}

	// Slot is a (day, period) cell of a section grid.
	Slot struct {
		Day      Weekday `json:"day"`
		PeriodID string  `json:"period_id"`
	}

	// SlotKey identifies the single Entry a section may hold in a Slot.
	SlotKey struct {
		SchoolID  string
		SectionID string
		Slot
	}
)

func (e Entry) Slot() Slot {
	return Slot{Day: e.Day, PeriodID: e.PeriodID}
}

func (e Entry) Key() SlotKey {
	return SlotKey{SchoolID: e.SchoolID, SectionID: e.SectionID, Slot: e.Slot()}
}

// Label renders the "Class • Section" label of a section.
func (s Section) Label(class Class) string {
	if class.Name == "" {
		return s.Name
	}
	return class.Name + " • " + s.Name
}

// SortPeriods orders periods by SortOrder, then Label, then ID.
func SortPeriods(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		pi, pj := periods[i], periods[j]
		if pi.SortOrder != pj.SortOrder {
			return pi.SortOrder < pj.SortOrder
		}
		if pi.Label != pj.Label {
			return pi.Label < pj.Label
		}
		return pi.ID < pj.ID
	})
}

// PeriodIndex looks periods up by ID.
type PeriodIndex map[string]Period

func NewPeriodIndex(periods []Period) PeriodIndex {
	idx := make(PeriodIndex, len(periods))
	for _, p := range periods {
		idx[p.ID] = p
	}
	return idx
}

// SubjectSet is the set of subjects eligible for a section, keyed by subject ID.
type SubjectSet map[string]Subject

func NewSubjectSet(subjects []Subject) SubjectSet {
	set := make(SubjectSet, len(subjects))
	for _, s := range subjects {
		set[s.ID] = s
	}
	return set
}

func (s SubjectSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Subjects returns the set content sorted by name.
func (s SubjectSet) Subjects() []Subject {
	subjects := make([]Subject, 0, len(s))
	for _, sub := range s {
		subjects = append(subjects, sub)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name != subjects[j].Name {
			return subjects[i].Name < subjects[j].Name
		}
		return subjects[i].ID < subjects[j].ID
	})
	return subjects
}

type (
	// Catalog is the school-wide reference data.
	Catalog struct {
		SchoolID string    `json:"school_id"`
		Classes  []Class   `json:"classes"`
		Sections []Section `json:"sections"`
		Periods  []Period  `json:"periods"` // sorted by SortOrder
		Teachers []Teacher `json:"teachers"`
	}

	// SectionCatalog is everything needed to edit one section.
	SectionCatalog struct {
		Section            Section             `json:"section"`
		Eligible           SubjectSet          `json:"-"`
		EligibleSubjects   []Subject           `json:"eligible_subjects"`
		TeacherAssignments []TeacherAssignment `json:"teacher_assignments"`
		Entries            []Entry             `json:"entries"`
	}
)

func (c Catalog) ClassByID(id string) (Class, bool) {
	for _, cls := range c.Classes {
		if cls.ID == id {
			return cls, true
		}
	}
	return Class{}, false
}

func (c Catalog) SectionByID(id string) (Section, bool) {
	for _, sec := range c.Sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return Section{}, false
}

// SectionLabel renders the "Class • Section" label of the section `id`.
func (c Catalog) SectionLabel(id string) string {
	sec, ok := c.SectionByID(id)
	if !ok {
		return id
	}
	cls, _ := c.ClassByID(sec.ClassID)
	return sec.Label(cls)
}

// TeacherName resolves a teacher ID to its name, falling back to the ID itself.
func (c Catalog) TeacherName(id string) string {
	for _, t := range c.Teachers {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}

// DefaultTeachers maps subject IDs to their assigned teacher.
func (sc SectionCatalog) DefaultTeachers() map[string]string {
	defaults := make(map[string]string, len(sc.TeacherAssignments))
	for _, ta := range sc.TeacherAssignments {
		defaults[ta.SubjectID] = ta.TeacherID
	}
	return defaults
}

// EditContext is the value object handed to the Engine for each write on a section.
type EditContext struct {
	SchoolID        string
	SectionID       string
	CanEdit         bool
	Periods         PeriodIndex
	Eligible        SubjectSet
	DefaultTeachers map[string]string // subjectID -> teacherID
}
