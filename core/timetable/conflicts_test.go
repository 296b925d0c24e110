package timetable

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func entry(id, section string, day Weekday, period string, teacher, room *string) Entry {
	return Entry{
		ID:          id,
		SchoolID:    "s1",
		SectionID:   section,
		Day:         day,
		PeriodID:    period,
		SubjectName: "Maths",
		TeacherID:   teacher,
		Room:        room,
	}
}

func TestDetectConflicts(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    Conflicts
	}{
		{name: "empty", want: Conflicts{}},
		{
			name: "teacher double-booked",
			entries: []Entry{
				entry("e1", "A", Monday, "p1", strPtr("t1"), nil),
				entry("e2", "B", Monday, "p1", strPtr("t1"), nil),
			},
			want: Conflicts{
				"e1": {{Type: TeacherConflict, Day: Monday, PeriodID: "p1", EntryID: "e2", SectionID: "B", Value: "t1"}},
				"e2": {{Type: TeacherConflict, Day: Monday, PeriodID: "p1", EntryID: "e1", SectionID: "A", Value: "t1"}},
			},
		},
		{
			name: "room normalized",
			entries: []Entry{
				entry("e1", "A", Tuesday, "p2", nil, strPtr("Lab 1")),
				entry("e2", "B", Tuesday, "p2", nil, strPtr("  lab 1 ")),
			},
			want: Conflicts{
				"e1": {{Type: RoomConflict, Day: Tuesday, PeriodID: "p2", EntryID: "e2", SectionID: "B", Value: "lab 1"}},
				"e2": {{Type: RoomConflict, Day: Tuesday, PeriodID: "p2", EntryID: "e1", SectionID: "A", Value: "lab 1"}},
			},
		},
		{
			name: "teacher and room",
			entries: []Entry{
				entry("e1", "A", Monday, "p1", strPtr("t1"), strPtr("R1")),
				entry("e2", "B", Monday, "p1", strPtr("t1"), strPtr("r1")),
			},
			want: Conflicts{
				"e1": {
					{Type: RoomConflict, Day: Monday, PeriodID: "p1", EntryID: "e2", SectionID: "B", Value: "r1"},
					{Type: TeacherConflict, Day: Monday, PeriodID: "p1", EntryID: "e2", SectionID: "B", Value: "t1"},
				},
				"e2": {
					{Type: RoomConflict, Day: Monday, PeriodID: "p1", EntryID: "e1", SectionID: "A", Value: "r1"},
					{Type: TeacherConflict, Day: Monday, PeriodID: "p1", EntryID: "e1", SectionID: "A", Value: "t1"},
				},
			},
		},
		{
			name: "different slots",
			entries: []Entry{
				entry("e1", "A", Monday, "p1", strPtr("t1"), strPtr("R1")),
				entry("e2", "B", Monday, "p2", strPtr("t1"), strPtr("R1")),
				entry("e3", "C", Tuesday, "p1", strPtr("t1"), strPtr("R1")),
			},
			want: Conflicts{},
		},
		{
			name: "blank values never conflict",
			entries: []Entry{
				entry("e1", "A", Monday, "p1", strPtr(" "), strPtr("")),
				entry("e2", "B", Monday, "p1", strPtr(" "), strPtr("")),
				entry("e3", "C", Monday, "p1", nil, nil),
			},
			want: Conflicts{},
		},
		{
			name: "same section",
			entries: []Entry{
				entry("e1", "A", Monday, "p1", strPtr("t1"), nil),
				entry("e2", "A", Monday, "p1", strPtr("t1"), nil),
			},
			want: Conflicts{},
		},
		{
			name: "malformed and duplicates skipped",
			entries: []Entry{
				entry("e1", "A", Monday, "p1", strPtr("t1"), nil),
				entry("e1", "B", Monday, "p1", strPtr("t1"), nil),
				entry("", "C", Monday, "p1", strPtr("t1"), nil),
				entry("e4", "", Monday, "p1", strPtr("t1"), nil),
				entry("e5", "D", Weekday(9), "p1", strPtr("t1"), nil),
				entry("e6", "E", Monday, "", strPtr("t1"), nil),
			},
			want: Conflicts{},
		},
		{
			name: "three sections",
			entries: []Entry{
				entry("e1", "A", Friday, "p1", strPtr("t1"), nil),
				entry("e2", "B", Friday, "p1", strPtr("t1"), nil),
				entry("e3", "C", Friday, "p1", strPtr("t1"), nil),
			},
			want: Conflicts{
				"e1": {
					{Type: TeacherConflict, Day: Friday, PeriodID: "p1", EntryID: "e2", SectionID: "B", Value: "t1"},
					{Type: TeacherConflict, Day: Friday, PeriodID: "p1", EntryID: "e3", SectionID: "C", Value: "t1"},
				},
				"e2": {
					{Type: TeacherConflict, Day: Friday, PeriodID: "p1", EntryID: "e1", SectionID: "A", Value: "t1"},
					{Type: TeacherConflict, Day: Friday, PeriodID: "p1", EntryID: "e3", SectionID: "C", Value: "t1"},
				},
				"e3": {
					{Type: TeacherConflict, Day: Friday, PeriodID: "p1", EntryID: "e1", SectionID: "A", Value: "t1"},
					{Type: TeacherConflict, Day: Friday, PeriodID: "p1", EntryID: "e2", SectionID: "B", Value: "t1"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectConflicts(tt.entries)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DetectConflicts() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectConflicts_symmetric(t *testing.T) {
	entries := []Entry{
		entry("e1", "A", Monday, "p1", strPtr("t1"), strPtr("Lab")),
		entry("e2", "B", Monday, "p1", strPtr("t2"), strPtr("lab")),
		entry("e3", "C", Monday, "p1", strPtr("t1"), nil),
		entry("e4", "A", Monday, "p2", strPtr("t2"), strPtr("Hall")),
		entry("e5", "B", Monday, "p2", strPtr("t3"), strPtr("hall ")),
	}
	conflicts := DetectConflicts(entries)

	for id, list := range conflicts {
		for _, cf := range list {
			assert.NotEqual(t, id, cf.EntryID, "self conflict")
			var mirrored bool
			for _, back := range conflicts[cf.EntryID] {
				if back.EntryID == id && back.Type == cf.Type {
					mirrored = true
				}
			}
			assert.Truef(t, mirrored, "%s -> %s (%s) is not mirrored", id, cf.EntryID, cf.Type)
		}
	}

	assert.True(t, conflicts.Has("e1", TeacherConflict))
	assert.True(t, conflicts.Has("e1", RoomConflict))
	assert.True(t, conflicts.Has("e3", ""))
	assert.False(t, conflicts.Has("e3", RoomConflict))
	assert.True(t, conflicts.Has("e5", RoomConflict))

	sub := conflicts.For(entries[3:])
	assert.Len(t, sub, 2)
	assert.Contains(t, sub, "e4")
	assert.NotContains(t, sub, "e1")
}

func TestSummarize(t *testing.T) {
	entries := []Entry{
		entry("e1", "A", Monday, "p1", strPtr("t1"), strPtr("Lab")),
		entry("e2", "B", Monday, "p1", strPtr("t1"), strPtr("lab")),
		entry("e3", "C", Monday, "p1", strPtr("t1"), nil),
		entry("e4", "C", Monday, "p2", strPtr("t1"), nil),
	}
	rep := Summarize(entries, DetectConflicts(entries))

	assert.Equal(t, 3, rep.Entries)
	assert.Equal(t, 3, rep.Teacher) // A-B, A-C, B-C
	assert.Equal(t, 1, rep.Room)    // A-B
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1}, rep.BySection)
	assert.NotContains(t, rep.Conflicts, "e4")
}

func TestNormalizeRoom(t *testing.T) {
	tests := []struct {
		name string
		room *string
		want string
	}{
		{name: "nil"},
		{name: "blank", room: strPtr("   ")},
		{name: "trimmed & lowered", room: strPtr("  Lab 1\t"), want: "lab 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRoom(tt.room); got != tt.want {
				t.Errorf("NormalizeRoom() = %q, want %q", got, tt.want)
			}
		})
	}
}
