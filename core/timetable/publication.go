package timetable

import (
	"context"

	"github.com/pkg/errors"
)

type PublicationState string

const (
	StateEmpty     PublicationState = "empty"
	StateDraft     PublicationState = "draft"
	StatePublished PublicationState = "published"
	StatePartial   PublicationState = "partial" // entries assigned after the last publish are still drafts
)

// PublishAll makes every entry of the section visible to non-privileged readers.
// Publishing again refreshes the publication timestamp. An empty section is left alone.
func (e *Engine) PublishAll(ctx context.Context, ec EditContext) (int, error) {
	return e.setPublished(ctx, ec, true)
}

// UnpublishAll hides every entry of the section again. An all-draft section is left alone.
func (e *Engine) UnpublishAll(ctx context.Context, ec EditContext) (int, error) {
	return e.setPublished(ctx, ec, false)
}

func (e *Engine) setPublished(ctx context.Context, ec EditContext, published bool) (int, error) {
	if !ec.CanEdit {
		return 0, ErrPermissionDenied
	}
	if ec.SectionID == "" {
		return 0, ErrInvalidTarget
	}

	op, kind := OpUnpublish, ChangeUnpublished
	if published {
		op, kind = OpPublish, ChangePublished
	}

	unlock := e.locks.lock(ec.SectionID)
	defer unlock()

	n, err := e.repo.SetSectionPublished(ctx, ec.SectionID, published, nowFunc())
	e.metrics.MutationDone(op, err)
	if err != nil {
		return 0, errors.Wrapf(err, "setting section published=%t", published)
	}
	if n > 0 {
		e.notify(ctx, ChangeEvent{SchoolID: ec.SchoolID, SectionID: ec.SectionID, Kind: kind})
	}
	return n, nil
}

// VisibleEntries filters out drafts unless the reader is privileged.
func VisibleEntries(entries []Entry, privileged bool) []Entry {
	if privileged {
		return entries
	}
	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsPublished {
			visible = append(visible, e)
		}
	}
	return visible
}

// SectionPublication summarizes the publication state of a section's entries.
func SectionPublication(entries []Entry) PublicationState {
	if len(entries) == 0 {
		return StateEmpty
	}
	var published int
	for _, e := range entries {
		if e.IsPublished {
			published++
		}
	}
	switch published {
	case 0:
		return StateDraft
	case len(entries):
		return StatePublished
	default:
		return StatePartial
	}
}
