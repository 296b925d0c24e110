package timetable

import (
	"context"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/ratiba/core"
)

type (
	// SeedFile describes the catalog of one school, as written in a YAML fixture.
	SeedFile struct {
		School   string        `yaml:"school" validate:"required,notblank"`
		Subjects []SeedSubject `yaml:"subjects" validate:"dive"`
		Teachers []SeedTeacher `yaml:"teachers" validate:"dive"`
		Periods  []SeedPeriod  `yaml:"periods" validate:"dive"`
		Classes  []SeedClass   `yaml:"classes" validate:"dive"`
	}

	SeedSubject struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name" validate:"required,notblank"`
	}

	SeedTeacher struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name" validate:"required,notblank"`
	}

	SeedPeriod struct {
		ID        string `yaml:"id"`
		NewPeriod `yaml:",inline"`
	}

	SeedClass struct {
		ID       string        `yaml:"id"`
		Name     string        `yaml:"name" validate:"required,notblank"`
		Sections []SeedSection `yaml:"sections" validate:"dive"`
	}

	SeedSection struct {
		ID       string            `yaml:"id"`
		Name     string            `yaml:"name" validate:"required,notblank"`
		Subjects []string          `yaml:"subjects"` // subject IDs or names
		Teachers map[string]string `yaml:"teachers"` // subject -> teacher, IDs or names
	}

	// SeedSummary counts what a seed created.
	SeedSummary struct {
		Classes     int
		Sections    int
		Periods     int
		Subjects    int
		Teachers    int
		Links       int
		Assignments int
	}
)

// ReadSeedFile decodes a YAML seed file.
func ReadSeedFile(r io.Reader) (SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SeedFile{}, errors.Wrap(err, "decoding seed file")
	}
	return f, nil
}

func (f SeedFile) Validate(validate *validator.Validate) error {
	return validate.Struct(f)
}

// refs resolves catalog references by ID first, then by case-insensitive name.
type refs map[string]string

func (r refs) add(id, name string) {
	r[id] = id
	if key := core.CleanString(name, true); key != "" {
		if _, taken := r[key]; !taken {
			r[key] = id
		}
	}
}

func (r refs) resolve(ref string) (string, bool) {
	if id, ok := r[ref]; ok {
		return id, true
	}
	id, ok := r[core.CleanString(ref, true)]
	return id, ok
}

// Seed writes the catalog described by f through repo.
func Seed(ctx context.Context, repo CatalogRepository, f SeedFile) (SeedSummary, error) {
	var sum SeedSummary
	school := core.CleanString(f.School)

	subjects := make(refs, len(f.Subjects))
	for _, s := range f.Subjects {
		sub, err := repo.CreateSubject(ctx, Subject{ID: s.ID, SchoolID: school, Name: core.CleanString(s.Name)})
		if err != nil {
			return sum, errors.Wrapf(err, "creating subject %q", s.Name)
		}
		subjects.add(sub.ID, sub.Name)
		sum.Subjects++
	}

	teachers := make(refs, len(f.Teachers))
	for _, t := range f.Teachers {
		tc, err := repo.CreateTeacher(ctx, Teacher{ID: t.ID, SchoolID: school, Name: core.CleanString(t.Name)})
		if err != nil {
			return sum, errors.Wrapf(err, "creating teacher %q", t.Name)
		}
		teachers.add(tc.ID, tc.Name)
		sum.Teachers++
	}

	for _, p := range f.Periods {
		period := p.Period(school)
		period.ID = p.ID
		if _, err := repo.CreatePeriod(ctx, period); err != nil {
			return sum, errors.Wrapf(err, "creating period %q", p.Label)
		}
		sum.Periods++
	}

	for _, c := range f.Classes {
		class, err := repo.CreateClass(ctx, Class{ID: c.ID, SchoolID: school, Name: core.CleanString(c.Name)})
		if err != nil {
			return sum, errors.Wrapf(err, "creating class %q", c.Name)
		}
		sum.Classes++

		for _, s := range c.Sections {
			section, err := repo.CreateSection(ctx, Section{
				ID:       s.ID,
				SchoolID: school,
				ClassID:  class.ID,
				Name:     core.CleanString(s.Name),
			})
			if err != nil {
				return sum, errors.Wrapf(err, "creating section %q", s.Name)
			}
			sum.Sections++

			for _, ref := range s.Subjects {
				subjectID, ok := subjects.resolve(ref)
				if !ok {
					return sum, fmt.Errorf("section %q: unknown subject %q", section.Label(class), ref)
				}
				if err = repo.LinkSubject(ctx, SectionSubject{SectionID: section.ID, SubjectID: subjectID}); err != nil {
					return sum, errors.Wrapf(err, "linking subject %q", ref)
				}
				sum.Links++
			}

			for subRef, teacherRef := range s.Teachers {
				subjectID, ok := subjects.resolve(subRef)
				if !ok {
					return sum, fmt.Errorf("section %q: unknown subject %q", section.Label(class), subRef)
				}
				teacherID, ok := teachers.resolve(teacherRef)
				if !ok {
					return sum, fmt.Errorf("section %q: unknown teacher %q", section.Label(class), teacherRef)
				}
				ta := TeacherAssignment{SectionID: section.ID, SubjectID: subjectID, TeacherID: teacherID}
				if err = repo.AssignTeacher(ctx, ta); err != nil {
					return sum, errors.Wrapf(err, "assigning teacher %q", teacherRef)
				}
				sum.Assignments++
			}
		}
	}
	return sum, nil
}
