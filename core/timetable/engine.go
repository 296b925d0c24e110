package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

type ChangeKind string

const (
	ChangeAssigned    ChangeKind = "assigned"
	ChangeCleared     ChangeKind = "cleared"
	ChangeDetails     ChangeKind = "details"
	ChangePublished   ChangeKind = "published"
	ChangeUnpublished ChangeKind = "unpublished"
	ChangeCatalog     ChangeKind = "catalog" // reference data reloaded, SectionID is empty
)

// mutation names, as reported to Metrics
const (
	OpAssign    = "assign"
	OpClear     = "clear"
	OpOverride  = "override"
	OpPublish   = "publish"
	OpUnpublish = "unpublish"
)

type (
	// ChangeEvent is emitted after every successful write on a section's entries.
	ChangeEvent struct {
		SchoolID  string     `json:"school_id"`
		SectionID string     `json:"section_id"`
		Kind      ChangeKind `json:"kind"`
		EntryID   string     `json:"entry_id,omitempty"`
		At        time.Time  `json:"at"`
	}

	ChangeNotifier interface {
		Notify(ctx context.Context, evt ChangeEvent) error
	}

	// Subscriber delivers the change events of a school until cancel is called.
	Subscriber interface {
		Subscribe(schoolID string) (events <-chan ChangeEvent, cancel func())
	}

	Metrics interface {
		MutationDone(op string, err error)
		ConflictsDetected(schoolID string, report Report, took time.Duration)
	}

	// AssignRequest asks for a subject in a slot. Nil TeacherID/Room mean "no explicit override".
	AssignRequest struct {
		Day       Weekday
		PeriodID  string
		SubjectID string
		TeacherID *string
		Room      *string
	}
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, ChangeEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) MutationDone(string, error)                      {}
func (nopMetrics) ConflictsDetected(string, Report, time.Duration) {}

var (
	nowFunc   = func() time.Time { return time.Now().UTC() } // mockable
	newIDFunc = func() string { return uuid.New().String() }  // mockable
)

// Engine applies slot edits and publication changes to the entries of a section.
type Engine struct {
	repo     Repository
	notifier ChangeNotifier
	metrics  Metrics
	logger   core.Logger
	locks    *sectionLocks
}

func NewEngine(repo Repository, notifier ChangeNotifier, metrics Metrics, logger core.Logger) *Engine {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{
		repo:     repo,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		locks:    newSectionLocks(),
	}
}

func (ec EditContext) checkTarget(day Weekday, periodID string) error {
	if ec.SectionID == "" || !day.Valid() {
		return ErrInvalidTarget
	}
	period, ok := ec.Periods[periodID]
	if !ok || period.IsBreak {
		return ErrInvalidTarget
	}
	return nil
}

// AssignSlot puts a subject in a slot of the edited section, replacing any previous occupant.
// The previous occupant's teacher and room carry over unless overridden, even when unset.
// Only an empty slot takes the subject's default TeacherAssignment.
func (e *Engine) AssignSlot(ctx context.Context, ec EditContext, req AssignRequest) (Entry, error) {
	if err := ec.checkTarget(req.Day, req.PeriodID); err != nil {
		return Entry{}, err
	}
	subject, ok := ec.Eligible[req.SubjectID]
	if !ok {
		return Entry{}, ErrSubjectNotEligible
	}
	if !ec.CanEdit {
		return Entry{}, ErrPermissionDenied
	}

	unlock := e.locks.lock(ec.SectionID)
	defer unlock()

	key := SlotKey{SchoolID: ec.SchoolID, SectionID: ec.SectionID, Slot: Slot{Day: req.Day, PeriodID: req.PeriodID}}
	entry, err := e.repo.ReplaceSlot(ctx, key, func(existing *Entry) (Entry, error) {
		now := nowFunc()
		entry := Entry{
			ID:          newIDFunc(),
			SchoolID:    ec.SchoolID,
			SectionID:   ec.SectionID,
			Day:         req.Day,
			PeriodID:    req.PeriodID,
			SubjectName: subject.Name,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		entry.TeacherID = resolveTeacher(req.TeacherID, existing, ec.DefaultTeachers[subject.ID])
		entry.Room = resolveRoom(req.Room, existing)
		return entry, nil
	})
	e.metrics.MutationDone(OpAssign, err)
	if err != nil {
		return Entry{}, errors.Wrap(err, "replacing slot")
	}

	e.notify(ctx, ChangeEvent{SchoolID: ec.SchoolID, SectionID: ec.SectionID, Kind: ChangeAssigned, EntryID: entry.ID})
	return entry, nil
}

func resolveTeacher(override *string, existing *Entry, defaultTeacher string) *string {
	if override != nil {
		return core.StringPtr(*override)
	}
	if existing != nil {
		if existing.TeacherID == nil {
			return nil
		}
		return core.StringPtr(*existing.TeacherID)
	}
	return core.StringPtr(defaultTeacher)
}

func resolveRoom(override *string, existing *Entry) *string {
	if override != nil {
		return core.StringPtr(*override)
	}
	if existing != nil && existing.Room != nil {
		return core.StringPtr(*existing.Room)
	}
	return nil
}

// ClearSlot empties a slot of the edited section. Clearing an empty slot is a no-op.
func (e *Engine) ClearSlot(ctx context.Context, ec EditContext, day Weekday, periodID string) error {
	if !ec.CanEdit {
		return ErrPermissionDenied
	}
	if ec.SectionID == "" || !day.Valid() || periodID == "" {
		return ErrInvalidTarget
	}

	unlock := e.locks.lock(ec.SectionID)
	defer unlock()

	key := SlotKey{SchoolID: ec.SchoolID, SectionID: ec.SectionID, Slot: Slot{Day: day, PeriodID: periodID}}
	deleted, err := e.repo.DeleteSlot(ctx, key)
	e.metrics.MutationDone(OpClear, err)
	if err != nil {
		return errors.Wrap(err, "deleting slot")
	}
	if deleted {
		e.notify(ctx, ChangeEvent{SchoolID: ec.SchoolID, SectionID: ec.SectionID, Kind: ChangeCleared})
	}
	return nil
}

// OverrideSlotDetails changes the teacher and/or room of an entry of the edited section, keeping its subject.
func (e *Engine) OverrideSlotDetails(ctx context.Context, ec EditContext, entryID string, patch DetailsPatch) (Entry, error) {
	if !ec.CanEdit {
		return Entry{}, ErrPermissionDenied
	}

	unlock := e.locks.lock(ec.SectionID)
	defer unlock()

	entry, err := e.repo.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, errors.Wrap(err, "getting entry")
	}
	if entry.SectionID != ec.SectionID {
		return Entry{}, ErrNotFound
	}
	if patch.IsEmpty() {
		return entry, nil
	}

	entry, err = e.repo.UpdateEntryDetails(ctx, entryID, patch, nowFunc())
	e.metrics.MutationDone(OpOverride, err)
	if err != nil {
		return Entry{}, errors.Wrap(err, "updating entry details")
	}

	e.notify(ctx, ChangeEvent{SchoolID: ec.SchoolID, SectionID: ec.SectionID, Kind: ChangeDetails, EntryID: entry.ID})
	return entry, nil
}

// SchoolConflicts snapshots every entry of the school and runs conflict detection over it.
func (e *Engine) SchoolConflicts(ctx context.Context, schoolID string) (Report, []Entry, error) {
	entries, err := e.repo.AllSchoolEntries(ctx, schoolID)
	if err != nil {
		return Report{}, nil, errors.Wrap(err, "querying school entries")
	}
	start := time.Now()
	report := Summarize(entries, DetectConflicts(entries))
	e.metrics.ConflictsDetected(schoolID, report, time.Since(start))
	return report, entries, nil
}

// CatalogChanged tells other processes that the reference data of a school was rewritten,
// so that they drop their cached catalog.
func (e *Engine) CatalogChanged(ctx context.Context, schoolID string) {
	e.notify(ctx, ChangeEvent{SchoolID: schoolID, Kind: ChangeCatalog})
}

func (e *Engine) notify(ctx context.Context, evt ChangeEvent) {
	evt.At = nowFunc()
	if err := e.notifier.Notify(ctx, evt); err != nil {
		e.logger.Error(fmt.Sprintf("notifying %s change on section %q", evt.Kind, evt.SectionID), err)
	}
}
