package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

const slotConflictTarget = "(section_id, day, period_id)"

type timetableRepository struct {
	db       core.DB
	sb       sq.StatementBuilderType
	postgres bool
}

var _ timetable.Repository = (*timetableRepository)(nil)

// NewTimetableRepository returns a repository over a Postgres or SQLite database.
func NewTimetableRepository(db *sqlx.DB) timetable.Repository {
	postgres := db.DriverName() != "sqlite"
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if postgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &timetableRepository{db: db, sb: sb, postgres: postgres}
}

func (repo *timetableRepository) getExec(exec ...core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 {
		return exec[0]
	}
	return repo.db
}

func (repo *timetableRepository) selectInto(ctx context.Context, dest interface{}, q sq.Sqlizer, exec ...core.DBExecutor) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return errors.Wrap(sqlx.SelectContext(ctx, repo.getExec(exec...), dest, query, args...), "selecting")
}

func (repo *timetableRepository) getInto(ctx context.Context, dest interface{}, q sq.Sqlizer, exec ...core.DBExecutor) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return trapNoRowsErr(sqlx.GetContext(ctx, repo.getExec(exec...), dest, query, args...))
}

func (repo *timetableRepository) exec(ctx context.Context, q sq.Sqlizer, exec ...core.DBExecutor) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec...).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "getting rows affected")
}

func trapNoRowsErr(err error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return timetable.ErrNotFound
	}
	return err
}

// translateErr maps constraint violations to domain errors:
// unique violations become onUnique, foreign key violations become onForeignKey.
func translateErr(err error, onUnique, onForeignKey error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return onUnique
		case "23503":
			return onForeignKey
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return onUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return onForeignKey
		}
	}
	return err
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// Catalog

func (repo *timetableRepository) QueryClasses(ctx context.Context, schoolID string) ([]timetable.Class, error) {
	classes := make([]timetable.Class, 0)
	q := repo.sb.Select("id", "school_id", "name").From("classes").Where(sq.Eq{"school_id": schoolID}).OrderBy("name", "id")
	if err := repo.selectInto(ctx, &classes, q); err != nil {
		return nil, err
	}
	return classes, nil
}

func (repo *timetableRepository) QuerySections(ctx context.Context, schoolID string) ([]timetable.Section, error) {
	sections := make([]timetable.Section, 0)
	q := repo.sb.Select("id", "school_id", "class_id", "name").
		From("sections").
		Where(sq.Eq{"school_id": schoolID}).
		OrderBy("class_id", "name", "id")
	if err := repo.selectInto(ctx, &sections, q); err != nil {
		return nil, err
	}
	return sections, nil
}

func (repo *timetableRepository) QueryPeriods(ctx context.Context, schoolID string) ([]timetable.Period, error) {
	var rows []periodRow
	q := repo.sb.Select(periodColumns...).From("periods").Where(sq.Eq{"school_id": schoolID}).OrderBy("sort_order", "label", "id")
	if err := repo.selectInto(ctx, &rows, q); err != nil {
		return nil, err
	}
	periods := make([]timetable.Period, len(rows))
	for i, r := range rows {
		periods[i] = r.period()
	}
	return periods, nil
}

func (repo *timetableRepository) QueryTeachers(ctx context.Context, schoolID string) ([]timetable.Teacher, error) {
	teachers := make([]timetable.Teacher, 0)
	q := repo.sb.Select("id", "school_id", "name").From("teachers").Where(sq.Eq{"school_id": schoolID}).OrderBy("name", "id")
	if err := repo.selectInto(ctx, &teachers, q); err != nil {
		return nil, err
	}
	return teachers, nil
}

func (repo *timetableRepository) QuerySubjects(ctx context.Context, schoolID string) ([]timetable.Subject, error) {
	subjects := make([]timetable.Subject, 0)
	q := repo.sb.Select("id", "school_id", "name").From("subjects").Where(sq.Eq{"school_id": schoolID}).OrderBy("name", "id")
	if err := repo.selectInto(ctx, &subjects, q); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (repo *timetableRepository) GetSection(ctx context.Context, schoolID, sectionID string) (timetable.Section, error) {
	var section timetable.Section
	q := repo.sb.Select("id", "school_id", "class_id", "name").
		From("sections").
		Where(sq.Eq{"id": sectionID, "school_id": schoolID})
	err := repo.getInto(ctx, &section, q)
	return section, err
}

func (repo *timetableRepository) QuerySectionSubjects(ctx context.Context, sectionID string) ([]timetable.SectionSubject, error) {
	links := make([]timetable.SectionSubject, 0)
	q := repo.sb.Select("section_id", "subject_id").
		From("section_subjects").
		Where(sq.Eq{"section_id": sectionID}).
		OrderBy("subject_id")
	if err := repo.selectInto(ctx, &links, q); err != nil {
		return nil, err
	}
	return links, nil
}

func (repo *timetableRepository) QueryTeacherAssignments(ctx context.Context, sectionID string) ([]timetable.TeacherAssignment, error) {
	assignments := make([]timetable.TeacherAssignment, 0)
	q := repo.sb.Select("section_id", "subject_id", "teacher_id").
		From("teacher_assignments").
		Where(sq.Eq{"section_id": sectionID}).
		OrderBy("subject_id")
	if err := repo.selectInto(ctx, &assignments, q); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (repo *timetableRepository) CreateClass(ctx context.Context, class timetable.Class) (timetable.Class, error) {
	class.ID = newID(class.ID)
	q := repo.sb.Insert("classes").Columns("id", "school_id", "name").Values(class.ID, class.SchoolID, class.Name)
	if _, err := repo.exec(ctx, q); err != nil {
		return timetable.Class{}, errors.Wrap(translateErr(err, timetable.ErrSlotConflict, timetable.ErrNotFound), "inserting class")
	}
	return class, nil
}

func (repo *timetableRepository) CreateSection(ctx context.Context, section timetable.Section) (timetable.Section, error) {
	section.ID = newID(section.ID)
	q := repo.sb.Insert("sections").
		Columns("id", "school_id", "class_id", "name").
		Values(section.ID, section.SchoolID, section.ClassID, section.Name)
	if _, err := repo.exec(ctx, q); err != nil {
		return timetable.Section{}, errors.Wrap(translateErr(err, timetable.ErrSlotConflict, timetable.ErrNotFound), "inserting section")
	}
	return section, nil
}

func (repo *timetableRepository) CreatePeriod(ctx context.Context, period timetable.Period) (timetable.Period, error) {
	period.ID = newID(period.ID)
	r := newPeriodRow(period)
	q := repo.sb.Insert("periods").
		Columns(periodColumns...).
		Values(r.ID, r.SchoolID, r.Label, r.SortOrder, r.StartTime, r.EndTime, r.IsBreak)
	if _, err := repo.exec(ctx, q); err != nil {
		return timetable.Period{}, errors.Wrap(translateErr(err, timetable.ErrSlotConflict, timetable.ErrNotFound), "inserting period")
	}
	return period, nil
}

func (repo *timetableRepository) CreateSubject(ctx context.Context, subject timetable.Subject) (timetable.Subject, error) {
	subject.ID = newID(subject.ID)
	q := repo.sb.Insert("subjects").Columns("id", "school_id", "name").Values(subject.ID, subject.SchoolID, subject.Name)
	if _, err := repo.exec(ctx, q); err != nil {
		return timetable.Subject{}, errors.Wrap(translateErr(err, timetable.ErrSlotConflict, timetable.ErrNotFound), "inserting subject")
	}
	return subject, nil
}

func (repo *timetableRepository) CreateTeacher(ctx context.Context, teacher timetable.Teacher) (timetable.Teacher, error) {
	teacher.ID = newID(teacher.ID)
	q := repo.sb.Insert("teachers").Columns("id", "school_id", "name").Values(teacher.ID, teacher.SchoolID, teacher.Name)
	if _, err := repo.exec(ctx, q); err != nil {
		return timetable.Teacher{}, errors.Wrap(translateErr(err, timetable.ErrSlotConflict, timetable.ErrNotFound), "inserting teacher")
	}
	return teacher, nil
}

func (repo *timetableRepository) LinkSubject(ctx context.Context, link timetable.SectionSubject) error {
	q := repo.sb.Insert("section_subjects").
		Columns("section_id", "subject_id").
		Values(link.SectionID, link.SubjectID).
		Suffix("ON CONFLICT (section_id, subject_id) DO NOTHING")
	_, err := repo.exec(ctx, q)
	return errors.Wrap(translateErr(err, nil, timetable.ErrNotFound), "linking subject")
}

func (repo *timetableRepository) AssignTeacher(ctx context.Context, ta timetable.TeacherAssignment) error {
	q := repo.sb.Insert("teacher_assignments").
		Columns("section_id", "subject_id", "teacher_id").
		Values(ta.SectionID, ta.SubjectID, ta.TeacherID).
		Suffix("ON CONFLICT (section_id, subject_id) DO UPDATE SET teacher_id = excluded.teacher_id")
	_, err := repo.exec(ctx, q)
	return errors.Wrap(translateErr(err, nil, timetable.ErrNotFound), "assigning teacher")
}

func (repo *timetableRepository) DeletePeriod(ctx context.Context, schoolID, periodID string) error {
	q := repo.sb.Delete("periods").Where(sq.Eq{"id": periodID, "school_id": schoolID})
	n, err := repo.exec(ctx, q)
	if err != nil {
		return errors.Wrap(err, "deleting period")
	}
	if n == 0 {
		return timetable.ErrNotFound
	}
	return nil
}

// Entries

func (repo *timetableRepository) entriesQuery() sq.SelectBuilder {
	return repo.sb.Select(entryColumns...).
		From("timetable_entries e").
		Join("periods p ON p.id = e.period_id").
		OrderBy("e.day", "p.sort_order", "e.section_id", "e.id")
}

func (repo *timetableRepository) EntriesForSection(ctx context.Context, sectionID string) ([]timetable.Entry, error) {
	var rows []entryRow
	if err := repo.selectInto(ctx, &rows, repo.entriesQuery().Where(sq.Eq{"e.section_id": sectionID})); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

func (repo *timetableRepository) AllSchoolEntries(ctx context.Context, schoolID string) ([]timetable.Entry, error) {
	var rows []entryRow
	if err := repo.selectInto(ctx, &rows, repo.entriesQuery().Where(sq.Eq{"e.school_id": schoolID})); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

func (repo *timetableRepository) getEntry(ctx context.Context, where sq.Eq, forUpdate bool, exec ...core.DBExecutor) (timetable.Entry, error) {
	var row entryRow
	q := repo.sb.Select(entryColumns...).From("timetable_entries e").Where(where)
	if forUpdate && repo.postgres {
		q = q.Suffix("FOR UPDATE")
	}
	if err := repo.getInto(ctx, &row, q, exec...); err != nil {
		return timetable.Entry{}, err
	}
	return row.entry(), nil
}

func (repo *timetableRepository) GetEntry(ctx context.Context, id string) (timetable.Entry, error) {
	return repo.getEntry(ctx, sq.Eq{"e.id": id}, false)
}

func (repo *timetableRepository) ReplaceSlot(
	ctx context.Context,
	key timetable.SlotKey,
	build func(existing *timetable.Entry) (timetable.Entry, error),
) (timetable.Entry, error) {
	var entry timetable.Entry
	err := core.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		where := sq.Eq{"e.section_id": key.SectionID, "e.day": int(key.Day), "e.period_id": key.PeriodID}
		var existing *timetable.Entry
		current, err := repo.getEntry(ctx, where, true /* forUpdate */, tx)
		switch {
		case err == nil:
			existing = &current
		case errors.Cause(err) != timetable.ErrNotFound:
			return errors.Wrap(err, "getting slot occupant")
		}

		if entry, err = build(existing); err != nil {
			return err
		}

		r := newEntryRow(entry)
		q := repo.sb.Insert("timetable_entries").
			Columns(
				"id", "school_id", "section_id", "day", "period_id", "subject_name", "teacher_id", "room",
				"is_published", "published_at", "created_at", "updated_at",
			).
			Values(
				r.ID, key.SchoolID, key.SectionID, int(key.Day), key.PeriodID, r.SubjectName, r.TeacherID, r.Room,
				r.IsPublished, r.PublishedAt, r.CreatedAt, r.UpdatedAt,
			).
			Suffix("ON CONFLICT " + slotConflictTarget + " DO UPDATE SET " +
				"id = excluded.id, school_id = excluded.school_id, subject_name = excluded.subject_name, " +
				"teacher_id = excluded.teacher_id, room = excluded.room, is_published = excluded.is_published, " +
				"published_at = excluded.published_at, created_at = excluded.created_at, updated_at = excluded.updated_at")
		if _, err = repo.exec(ctx, q, tx); err != nil {
			return translateErr(err, timetable.ErrSlotConflict, timetable.ErrInvalidTarget)
		}
		return nil
	})
	if err != nil {
		return timetable.Entry{}, err
	}
	return entry, nil
}

func (repo *timetableRepository) DeleteSlot(ctx context.Context, key timetable.SlotKey) (bool, error) {
	q := repo.sb.Delete("timetable_entries").
		Where(sq.Eq{"section_id": key.SectionID, "day": int(key.Day), "period_id": key.PeriodID})
	n, err := repo.exec(ctx, q)
	if err != nil {
		return false, errors.Wrap(err, "deleting slot")
	}
	return n > 0, nil
}

func (repo *timetableRepository) UpdateEntryDetails(
	ctx context.Context,
	id string,
	patch timetable.DetailsPatch,
	updatedAt time.Time,
) (timetable.Entry, error) {
	var entry timetable.Entry
	err := core.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var err error
		if entry, err = repo.getEntry(ctx, sq.Eq{"e.id": id}, true /* forUpdate */, tx); err != nil {
			return err
		}
		patch.Apply(&entry)
		entry.UpdatedAt = updatedAt.UTC()

		r := newEntryRow(entry)
		q := repo.sb.Update("timetable_entries").
			Set("teacher_id", r.TeacherID).
			Set("room", r.Room).
			Set("updated_at", r.UpdatedAt).
			Where(sq.Eq{"id": id})
		_, err = repo.exec(ctx, q, tx)
		return errors.Wrap(err, "updating entry")
	})
	if err != nil {
		return timetable.Entry{}, err
	}
	return entry, nil
}

func (repo *timetableRepository) SetSectionPublished(
	ctx context.Context,
	sectionID string,
	published bool,
	at time.Time,
) (int, error) {
	at = at.UTC()
	q := repo.sb.Update("timetable_entries").
		Set("is_published", published).
		Set("updated_at", at).
		Where(sq.Eq{"section_id": sectionID})
	if published {
		q = q.Set("published_at", at)
	} else {
		q = q.Set("published_at", nil).Where(sq.Eq{"is_published": true})
	}
	n, err := repo.exec(ctx, q)
	return n, errors.Wrap(err, "updating publication")
}
