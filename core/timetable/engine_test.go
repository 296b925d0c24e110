package timetable_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/tests"
)

var errBoom = errors.New("boom")

func TestNewEngine(t *testing.T) {
	assert.Panics(t, func() { timetable.NewEngine(nil, nil, nil, logsvc.NewNopLogger()) })
	assert.NotPanics(t, func() {
		f := setup(t)
		timetable.NewEngine(f.repo, nil, nil, logsvc.NewNopLogger())
	})
}

func TestEngine_AssignSlot(t *testing.T) {
	f := setup(t)
	defer timetable.MockIDs("e1")()
	ctx := context.Background()
	ec := f.editContext(t, testutil.SectionA, true)

	e, err := f.engine.AssignSlot(ctx, ec, timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.P1, SubjectID: testutil.Maths})
	require.NoError(t, err)

	want := timetable.Entry{
		ID:          "e1",
		SchoolID:    testutil.SchoolID,
		SectionID:   testutil.SectionA,
		Day:         timetable.Monday,
		PeriodID:    testutil.P1,
		SubjectName: "Mathematics",
		TeacherID:   testutil.StrPtr(testutil.Alice), // default assignment
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	assert.Equal(t, want, e)
	assert.Equal(t, []timetable.Entry{want}, f.sectionEntries(t, testutil.SectionA))

	assert.Equal(t, []timetable.ChangeEvent{{
		SchoolID:  testutil.SchoolID,
		SectionID: testutil.SectionA,
		Kind:      timetable.ChangeAssigned,
		EntryID:   "e1",
		At:        now,
	}}, f.notifier.Events())
	assert.Equal(t, 1, f.metrics.ops[timetable.OpAssign])
	assert.Zero(t, f.metrics.failures[timetable.OpAssign])
}

func TestEngine_AssignSlot_rejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	editor := f.editContext(t, testutil.SectionA, true)
	viewer := f.editContext(t, testutil.SectionA, false)

	tests := []struct {
		name    string
		ec      timetable.EditContext
		req     timetable.AssignRequest
		wantErr error
	}{
		{
			name:    "invalid day",
			ec:      editor,
			req:     timetable.AssignRequest{Day: timetable.Weekday(7), PeriodID: testutil.P1, SubjectID: testutil.Maths},
			wantErr: timetable.ErrInvalidTarget,
		},
		{
			name:    "negative day",
			ec:      editor,
			req:     timetable.AssignRequest{Day: timetable.Weekday(-1), PeriodID: testutil.P1, SubjectID: testutil.Maths},
			wantErr: timetable.ErrInvalidTarget,
		},
		{
			name:    "unknown period",
			ec:      editor,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: "nope", SubjectID: testutil.Maths},
			wantErr: timetable.ErrInvalidTarget,
		},
		{
			name:    "break period",
			ec:      editor,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.Break, SubjectID: testutil.Maths},
			wantErr: timetable.ErrInvalidTarget,
		},
		{
			name:    "subject not linked to section",
			ec:      editor,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.P1, SubjectID: testutil.Chem},
			wantErr: timetable.ErrSubjectNotEligible,
		},
		{
			name:    "unknown subject",
			ec:      editor,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.P1, SubjectID: "nope"},
			wantErr: timetable.ErrSubjectNotEligible,
		},
		{
			name:    "read-only",
			ec:      viewer,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.P1, SubjectID: testutil.Maths},
			wantErr: timetable.ErrPermissionDenied,
		},
		{
			name:    "target checked before permission",
			ec:      viewer,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.Break, SubjectID: testutil.Chem},
			wantErr: timetable.ErrInvalidTarget,
		},
		{
			name:    "eligibility checked before permission",
			ec:      viewer,
			req:     timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.P1, SubjectID: testutil.Chem},
			wantErr: timetable.ErrSubjectNotEligible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.AssignSlot(ctx, tt.ec, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AssignSlot() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	assert.Empty(t, f.sectionEntries(t, testutil.SectionA))
	assert.Empty(t, f.notifier.Events())
}

func TestEngine_AssignSlot_replace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ec := f.editContext(t, testutil.SectionA, true)

	first, err := f.engine.AssignSlot(ctx, ec, timetable.AssignRequest{
		Day:       timetable.Wednesday,
		PeriodID:  testutil.P2,
		SubjectID: testutil.Maths,
		Room:      testutil.StrPtr("Lab 1"),
	})
	require.NoError(t, err)
	first, err = f.engine.OverrideSlotDetails(ctx, ec, first.ID, timetable.DetailsPatch{TeacherID: testutil.StrPtr(testutil.Carol)})
	require.NoError(t, err)
	_, err = f.engine.PublishAll(ctx, ec)
	require.NoError(t, err)

	t.Run("previous occupant's teacher and room carry over", func(t *testing.T) {
		e, err := f.engine.AssignSlot(ctx, ec, timetable.AssignRequest{Day: timetable.Wednesday, PeriodID: testutil.P2, SubjectID: testutil.Physics})
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, e.ID)
		assert.Equal(t, "Physics", e.SubjectName)
		assert.Equal(t, testutil.StrPtr(testutil.Carol), e.TeacherID)
		assert.Equal(t, testutil.StrPtr("Lab 1"), e.Room)
		assert.False(t, e.IsPublished, "a new occupant starts as draft")
		assert.Nil(t, e.PublishedAt)

		entries := f.sectionEntries(t, testutil.SectionA)
		require.Len(t, entries, 1)
		assert.Equal(t, e.ID, entries[0].ID)

		_, err = f.repo.GetEntry(ctx, first.ID)
		assert.True(t, errors.Is(err, timetable.ErrNotFound))
	})

	t.Run("explicit values win", func(t *testing.T) {
		e, err := f.engine.AssignSlot(ctx, ec, timetable.AssignRequest{
			Day:       timetable.Wednesday,
			PeriodID:  testutil.P2,
			SubjectID: testutil.Maths,
			TeacherID: testutil.StrPtr(testutil.Bob),
			Room:      testutil.StrPtr(" Hall "),
		})
		require.NoError(t, err)
		assert.Equal(t, testutil.StrPtr(testutil.Bob), e.TeacherID)
		assert.Equal(t, testutil.StrPtr("Hall"), e.Room)
	})

	t.Run("blank override clears", func(t *testing.T) {
		e, err := f.engine.AssignSlot(ctx, ec, timetable.AssignRequest{
			Day:       timetable.Wednesday,
			PeriodID:  testutil.P2,
			SubjectID: testutil.Art,
			TeacherID: testutil.StrPtr(""),
			Room:      testutil.StrPtr("  "),
		})
		require.NoError(t, err)
		assert.Nil(t, e.TeacherID)
		assert.Nil(t, e.Room)
	})

	t.Run("no teacher anywhere", func(t *testing.T) {
		e := f.assign(t, ec, timetable.Thursday, testutil.P1, testutil.Art)
		assert.Nil(t, e.TeacherID)
		assert.Nil(t, e.Room)
	})

	t.Run("cleared teacher stays cleared", func(t *testing.T) {
		e := f.assign(t, ec, timetable.Wednesday, testutil.P2, testutil.Physics)
		assert.Nil(t, e.TeacherID)
		assert.Nil(t, e.Room)
	})

	t.Run("empty slot takes the default teacher", func(t *testing.T) {
		e := f.assign(t, ec, timetable.Thursday, testutil.P3, testutil.Physics)
		assert.Equal(t, testutil.StrPtr(testutil.Bob), e.TeacherID)
	})
}

func TestEngine_AssignSlot_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ec := f.editContext(t, testutil.SectionA, true)
	subjects := []string{testutil.Maths, testutil.Physics, testutil.Art}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := timetable.AssignRequest{Day: timetable.Friday, PeriodID: testutil.P4, SubjectID: subjects[i%len(subjects)]}
			if _, err := f.engine.AssignSlot(ctx, ec, req); err != nil {
				t.Errorf("AssignSlot() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.sectionEntries(t, testutil.SectionA), 1)
	assert.Len(t, f.notifier.Events(), 30)
}

func TestEngine_ClearSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ec := f.editContext(t, testutil.SectionA, true)
	f.assign(t, ec, timetable.Monday, testutil.P1, testutil.Maths)
	kept := f.assign(t, ec, timetable.Monday, testutil.P2, testutil.Maths)

	tests := []struct {
		name    string
		ec      timetable.EditContext
		day     timetable.Weekday
		period  string
		wantErr error
	}{
		{name: "read-only", ec: f.editContext(t, testutil.SectionA, false), day: timetable.Monday, period: testutil.P1, wantErr: timetable.ErrPermissionDenied},
		{name: "permission checked first", ec: f.editContext(t, testutil.SectionA, false), day: 9, period: "", wantErr: timetable.ErrPermissionDenied},
		{name: "invalid day", ec: ec, day: 9, period: testutil.P1, wantErr: timetable.ErrInvalidTarget},
		{name: "missing period", ec: ec, day: timetable.Monday, wantErr: timetable.ErrInvalidTarget},
		{name: "clears", ec: ec, day: timetable.Monday, period: testutil.P1},
		{name: "already empty", ec: ec, day: timetable.Monday, period: testutil.P1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.engine.ClearSlot(ctx, tt.ec, tt.day, tt.period); !errors.Is(err, tt.wantErr) {
				t.Errorf("ClearSlot() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	assert.Equal(t, []timetable.Entry{kept}, f.sectionEntries(t, testutil.SectionA))

	var cleared int
	for _, evt := range f.notifier.Events() {
		if evt.Kind == timetable.ChangeCleared {
			cleared++
		}
	}
	assert.Equal(t, 1, cleared, "clearing an empty slot must not notify")
}

func TestEngine_OverrideSlotDetails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ecA := f.editContext(t, testutil.SectionA, true)
	ecB := f.editContext(t, testutil.SectionB, true)
	e := f.assign(t, ecA, timetable.Tuesday, testutil.P3, testutil.Maths)

	later := now.Add(1)
	defer timetable.MockClock(later)()

	t.Run("room only", func(t *testing.T) {
		got, err := f.engine.OverrideSlotDetails(ctx, ecA, e.ID, timetable.DetailsPatch{Room: testutil.StrPtr("Lab 2")})
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, "Mathematics", got.SubjectName)
		assert.Equal(t, testutil.StrPtr(testutil.Alice), got.TeacherID)
		assert.Equal(t, testutil.StrPtr("Lab 2"), got.Room)
		assert.Equal(t, later, got.UpdatedAt)
		assert.Equal(t, now, got.CreatedAt)
	})

	t.Run("clear teacher", func(t *testing.T) {
		got, err := f.engine.OverrideSlotDetails(ctx, ecA, e.ID, timetable.DetailsPatch{TeacherID: testutil.StrPtr("")})
		require.NoError(t, err)
		assert.Nil(t, got.TeacherID)
		assert.Equal(t, testutil.StrPtr("Lab 2"), got.Room)
	})

	t.Run("empty patch", func(t *testing.T) {
		before := len(f.notifier.Events())
		got, err := f.engine.OverrideSlotDetails(ctx, ecA, e.ID, timetable.DetailsPatch{})
		require.NoError(t, err)
		assert.Nil(t, got.TeacherID)
		assert.Len(t, f.notifier.Events(), before)
	})

	errTests := []struct {
		name    string
		ec      timetable.EditContext
		id      string
		wantErr error
	}{
		{name: "read-only", ec: f.editContext(t, testutil.SectionA, false), id: e.ID, wantErr: timetable.ErrPermissionDenied},
		{name: "unknown entry", ec: ecA, id: "nope", wantErr: timetable.ErrNotFound},
		{name: "entry of another section", ec: ecB, id: e.ID, wantErr: timetable.ErrNotFound},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.OverrideSlotDetails(ctx, tt.ec, tt.id, timetable.DetailsPatch{Room: testutil.StrPtr("X")})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("OverrideSlotDetails() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_SchoolConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ecA := f.editContext(t, testutil.SectionA, true)
	ecB := f.editContext(t, testutil.SectionB, true)
	ecC := f.editContext(t, testutil.SectionC, true)

	a := f.assign(t, ecA, timetable.Monday, testutil.P1, testutil.Maths) // alice
	b := f.assign(t, ecB, timetable.Monday, testutil.P1, testutil.Maths) // bob
	c := f.assign(t, ecC, timetable.Monday, testutil.P1, testutil.Maths) // alice
	f.assign(t, ecC, timetable.Monday, testutil.P2, testutil.Maths)      // alice, alone

	_, err := f.engine.OverrideSlotDetails(ctx, ecA, a.ID, timetable.DetailsPatch{Room: testutil.StrPtr("Lab")})
	require.NoError(t, err)
	_, err = f.engine.OverrideSlotDetails(ctx, ecB, b.ID, timetable.DetailsPatch{Room: testutil.StrPtr(" LAB")})
	require.NoError(t, err)

	report, entries, err := f.engine.SchoolConflicts(ctx, testutil.SchoolID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 1, report.Teacher)
	assert.Equal(t, 1, report.Room)
	assert.Equal(t, map[string]int{testutil.SectionA: 1, testutil.SectionB: 1, testutil.SectionC: 1}, report.BySection)

	assert.True(t, report.Conflicts.Has(a.ID, timetable.TeacherConflict))
	assert.True(t, report.Conflicts.Has(c.ID, timetable.TeacherConflict))
	assert.False(t, report.Conflicts.Has(b.ID, timetable.TeacherConflict))
	assert.True(t, report.Conflicts.Has(b.ID, timetable.RoomConflict))
	assert.Equal(t, 1, f.metrics.detected)

	t.Run("other school", func(t *testing.T) {
		report, entries, err := f.engine.SchoolConflicts(ctx, "school-2")
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Zero(t, report.Entries)
	})
}

func TestEngine_repositoryFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ec := f.editContext(t, testutil.SectionA, true)
	e := f.assign(t, ec, timetable.Monday, testutil.P1, testutil.Maths)
	events := len(f.notifier.Events())

	f.db.FailWith(errBoom)
	defer f.db.FailWith(nil)

	_, err := f.engine.AssignSlot(ctx, ec, timetable.AssignRequest{Day: timetable.Monday, PeriodID: testutil.P2, SubjectID: testutil.Maths})
	assert.True(t, errors.Is(err, errBoom), "AssignSlot() error = %v", err)
	assert.True(t, errors.Is(f.engine.ClearSlot(ctx, ec, timetable.Monday, testutil.P1), errBoom))
	_, err = f.engine.OverrideSlotDetails(ctx, ec, e.ID, timetable.DetailsPatch{Room: testutil.StrPtr("X")})
	assert.True(t, errors.Is(err, errBoom))
	_, err = f.engine.PublishAll(ctx, ec)
	assert.True(t, errors.Is(err, errBoom))
	_, _, err = f.engine.SchoolConflicts(ctx, testutil.SchoolID)
	assert.True(t, errors.Is(err, errBoom))

	assert.Len(t, f.notifier.Events(), events)
	assert.Equal(t, 1, f.metrics.failures[timetable.OpAssign])
	assert.Equal(t, 1, f.metrics.failures[timetable.OpClear])
	assert.Equal(t, 1, f.metrics.failures[timetable.OpPublish])
}

func TestEngine_notifierFailure(t *testing.T) {
	f := setup(t)
	f.notifier.err = errBoom
	ec := f.editContext(t, testutil.SectionA, true)

	// the write went through, the failed notification is only logged
	e := f.assign(t, ec, timetable.Monday, testutil.P1, testutil.Maths)
	assert.Equal(t, []timetable.Entry{e}, f.sectionEntries(t, testutil.SectionA))
}

func TestEngine_CatalogChanged(t *testing.T) {
	f := setup(t)

	f.engine.CatalogChanged(context.Background(), testutil.SchoolID)
	assert.Equal(t, []timetable.ChangeEvent{{
		SchoolID: testutil.SchoolID,
		Kind:     timetable.ChangeCatalog,
		At:       now,
	}}, f.notifier.Events())
}
