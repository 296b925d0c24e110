package timetable

import "errors"

var (
	ErrInvalidTarget      = errors.New("invalid target slot")
	ErrSubjectNotEligible = errors.New("subject not eligible for this section")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSlotConflict       = errors.New("slot already taken")
	ErrNotFound           = errors.New("not found")
)
