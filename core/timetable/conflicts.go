package timetable

import (
	"sort"

	"github.com/trezcool/ratiba/core"
)

type ConflictType string

const (
	TeacherConflict ConflictType = "teacher"
	RoomConflict    ConflictType = "room"
)

// Conflict tags an entry with another entry that double-books the same teacher or room.
type Conflict struct {
	Type      ConflictType `json:"type"`
	Day       Weekday      `json:"day"`
	PeriodID  string       `json:"period_id"`
	EntryID   string       `json:"entry_id"`   // the other entry
	SectionID string       `json:"section_id"` // the other entry's section
	Value     string       `json:"value"`      // teacher ID or normalized room
}

// Conflicts maps entry IDs to their conflicts. Entries without conflicts are absent.
type Conflicts map[string][]Conflict

// NormalizeRoom trims and lowers a room name so that "Lab 1" and " lab 1" compare equal.
func NormalizeRoom(room *string) string {
	if room == nil {
		return ""
	}
	return core.CleanString(*room, true /* lower */)
}

func teacherKey(teacherID *string) string {
	if teacherID == nil {
		return ""
	}
	return core.CleanString(*teacherID)
}

func wellFormed(e Entry) bool {
	return e.ID != "" && e.SectionID != "" && e.PeriodID != "" && e.Day.Valid()
}

// DetectConflicts finds every teacher and room double-booking in a school-wide snapshot of entries.
// Malformed entries are skipped and duplicate IDs are only counted once.
func DetectConflicts(entries []Entry) Conflicts {
	seen := make(map[string]struct{}, len(entries))
	slots := make(map[Slot][]Entry)
	for _, e := range entries {
		if !wellFormed(e) {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		slots[e.Slot()] = append(slots[e.Slot()], e)
	}

	conflicts := make(Conflicts)
	for slot, group := range slots {
		if len(group) < 2 {
			continue
		}
		byTeacher := make(map[string][]Entry)
		byRoom := make(map[string][]Entry)
		for _, e := range group {
			if k := teacherKey(e.TeacherID); k != "" {
				byTeacher[k] = append(byTeacher[k], e)
			}
			if k := NormalizeRoom(e.Room); k != "" {
				byRoom[k] = append(byRoom[k], e)
			}
		}
		for value, sub := range byTeacher {
			conflicts.tag(TeacherConflict, slot, value, sub)
		}
		for value, sub := range byRoom {
			conflicts.tag(RoomConflict, slot, value, sub)
		}
	}

	for id := range conflicts {
		sortConflicts(conflicts[id])
	}
	return conflicts
}

// tag records a conflict on each entry of `sub` for every other entry of a different section.
func (c Conflicts) tag(typ ConflictType, slot Slot, value string, sub []Entry) {
	if len(sub) < 2 {
		return
	}
	for _, e := range sub {
		for _, other := range sub {
			if other.ID == e.ID || other.SectionID == e.SectionID {
				continue
			}
			c[e.ID] = append(c[e.ID], Conflict{
				Type:      typ,
				Day:       slot.Day,
				PeriodID:  slot.PeriodID,
				EntryID:   other.ID,
				SectionID: other.SectionID,
				Value:     value,
			})
		}
	}
}

func sortConflicts(list []Conflict) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		return a.EntryID < b.EntryID
	})
}

// Has reports whether the entry has at least one conflict of type `typ` (any type when empty).
func (c Conflicts) Has(entryID string, typ ConflictType) bool {
	for _, cf := range c[entryID] {
		if typ == "" || cf.Type == typ {
			return true
		}
	}
	return false
}

// For restricts the conflicts to the given entries.
func (c Conflicts) For(entries []Entry) Conflicts {
	sub := make(Conflicts)
	for _, e := range entries {
		if list, ok := c[e.ID]; ok {
			sub[e.ID] = list
		}
	}
	return sub
}

// Report summarizes conflicts for display.
type Report struct {
	Entries   int            `json:"entries"` // entries with at least one conflict
	Teacher   int            `json:"teacher"` // conflicting pairs
	Room      int            `json:"room"`    // conflicting pairs
	BySection map[string]int `json:"by_section"`
	Conflicts Conflicts      `json:"conflicts"`
}

// Summarize builds a Report from the conflicts of a snapshot.
func Summarize(entries []Entry, conflicts Conflicts) Report {
	rep := Report{
		BySection: make(map[string]int),
		Conflicts: conflicts,
	}
	sections := make(map[string]string, len(entries))
	for _, e := range entries {
		sections[e.ID] = e.SectionID
	}

	var teacherRecs, roomRecs int
	for id, list := range conflicts {
		if len(list) == 0 {
			continue
		}
		rep.Entries++
		rep.BySection[sections[id]]++
		for _, cf := range list {
			switch cf.Type {
			case TeacherConflict:
				teacherRecs++
			case RoomConflict:
				roomRecs++
			}
		}
	}
	// each pair is recorded once on both sides
	rep.Teacher = teacherRecs / 2
	rep.Room = roomRecs / 2
	return rep
}
