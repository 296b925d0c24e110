package timetable

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/ratiba/core"
)

// CatalogStore loads the reference data the editor works against.
type CatalogStore struct {
	repo   Repository
	cache  CatalogCache // optional
	logger core.Logger
	group  singleflight.Group
}

func NewCatalogStore(repo Repository, cache CatalogCache, logger core.Logger) *CatalogStore {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &CatalogStore{repo: repo, cache: cache, logger: logger}
}

// LoadCatalog returns the classes, sections, periods (ordered by sort order) and teachers of a school.
// Concurrent loads of the same school share a single trip to the repository.
func (s *CatalogStore) LoadCatalog(ctx context.Context, schoolID string) (Catalog, error) {
	if s.cache != nil {
		cat, ok, err := s.cache.Get(ctx, schoolID)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("catalog cache: get %q", schoolID), err)
		} else if ok {
			return cat, nil
		}
	}

	v, err, _ := s.group.Do(schoolID, func() (interface{}, error) {
		cat, err := s.loadCatalog(ctx, schoolID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, cat); err != nil {
				s.logger.Warn(fmt.Sprintf("catalog cache: set %q", schoolID), err)
			}
		}
		return cat, nil
	})
	if err != nil {
		return Catalog{}, err
	}
	return v.(Catalog), nil
}

func (s *CatalogStore) loadCatalog(ctx context.Context, schoolID string) (Catalog, error) {
	cat := Catalog{SchoolID: schoolID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cat.Classes, err = s.repo.QueryClasses(gctx, schoolID)
		return errors.Wrap(err, "querying classes")
	})
	g.Go(func() (err error) {
		cat.Sections, err = s.repo.QuerySections(gctx, schoolID)
		return errors.Wrap(err, "querying sections")
	})
	g.Go(func() (err error) {
		cat.Periods, err = s.repo.QueryPeriods(gctx, schoolID)
		return errors.Wrap(err, "querying periods")
	})
	g.Go(func() (err error) {
		cat.Teachers, err = s.repo.QueryTeachers(gctx, schoolID)
		return errors.Wrap(err, "querying teachers")
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}

	SortPeriods(cat.Periods)
	return cat, nil
}

// Refresh drops the cached catalog of a school.
func (s *CatalogStore) Refresh(ctx context.Context, schoolID string) error {
	s.group.Forget(schoolID)
	if s.cache == nil {
		return nil
	}
	return errors.Wrap(s.cache.Invalidate(ctx, schoolID), "invalidating catalog cache")
}

// LoadSectionCatalog returns the eligible subjects, teacher assignments and entries of a section.
func (s *CatalogStore) LoadSectionCatalog(ctx context.Context, schoolID, sectionID string) (SectionCatalog, error) {
	section, err := s.repo.GetSection(ctx, schoolID, sectionID)
	if err != nil {
		return SectionCatalog{}, errors.Wrap(err, "getting section")
	}

	var (
		subjects []Subject
		links    []SectionSubject
		sc       = SectionCatalog{Section: section}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subjects, err = s.repo.QuerySubjects(gctx, schoolID)
		return errors.Wrap(err, "querying subjects")
	})
	g.Go(func() (err error) {
		links, err = s.repo.QuerySectionSubjects(gctx, sectionID)
		return errors.Wrap(err, "querying section subjects")
	})
	g.Go(func() (err error) {
		sc.TeacherAssignments, err = s.repo.QueryTeacherAssignments(gctx, sectionID)
		return errors.Wrap(err, "querying teacher assignments")
	})
	g.Go(func() (err error) {
		sc.Entries, err = s.repo.EntriesForSection(gctx, sectionID)
		return errors.Wrap(err, "querying entries")
	})
	if err = g.Wait(); err != nil {
		return SectionCatalog{}, err
	}

	linked := make(map[string]struct{}, len(links))
	for _, l := range links {
		linked[l.SubjectID] = struct{}{}
	}
	eligible := make([]Subject, 0, len(links))
	for _, sub := range subjects {
		if _, ok := linked[sub.ID]; ok {
			eligible = append(eligible, sub)
		}
	}
	sc.Eligible = NewSubjectSet(eligible)
	sc.EligibleSubjects = sc.Eligible.Subjects()
	if sc.TeacherAssignments == nil {
		sc.TeacherAssignments = []TeacherAssignment{}
	}
	if sc.Entries == nil {
		sc.Entries = []Entry{}
	}
	return sc, nil
}

// EditContext assembles the value object the Engine needs to edit a section.
// An unknown section is not a valid edit target: it yields ErrInvalidTarget, not ErrNotFound.
func (s *CatalogStore) EditContext(ctx context.Context, schoolID, sectionID string, canEdit bool) (EditContext, *SectionCatalog, error) {
	cat, err := s.LoadCatalog(ctx, schoolID)
	if err != nil {
		return EditContext{}, nil, errors.Wrap(err, "loading catalog")
	}
	sc, err := s.LoadSectionCatalog(ctx, schoolID, sectionID)
	if errors.Cause(err) == ErrNotFound {
		return EditContext{}, nil, errors.Wrapf(ErrInvalidTarget, "section %q", sectionID)
	}
	if err != nil {
		return EditContext{}, nil, errors.Wrap(err, "loading section catalog")
	}
	ec := EditContext{
		SchoolID:        schoolID,
		SectionID:       sectionID,
		CanEdit:         canEdit,
		Periods:         NewPeriodIndex(cat.Periods),
		Eligible:        sc.Eligible,
		DefaultTeachers: sc.DefaultTeachers(),
	}
	return ec, &sc, nil
}
