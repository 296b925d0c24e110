package timetable

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

var (
	timeOfDayTag   = "hhmm"
	timeOfDayText  = "time must be formatted as HH:MM"
	timeOfDayRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	timeRangeTag  = "timerange"
	timeRangeText = "end time must be after start time"
)

// InitValidators registers the timetable validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(timeOfDayTag, timeOfDayValidation)
	core.RegisterCustomTranslation(validate, translator, timeOfDayTag, timeOfDayText)

	validate.RegisterStructValidation(periodStructValidation, NewPeriod{})
	core.RegisterCustomTranslation(validate, translator, timeRangeTag, timeRangeText)
}

type (
	// AssignSlot is the body of a slot assignment.
	AssignSlot struct {
		SubjectID string  `json:"subject_id" validate:"required,notblank"`
		TeacherID *string `json:"teacher_id" validate:"omitempty,max=64"`
		Room      *string `json:"room" validate:"omitempty,max=64"`
	}

	// OverrideDetails is the body of a teacher/room override.
	OverrideDetails struct {
		TeacherID *string `json:"teacher_id" validate:"omitempty,max=64"`
		Room      *string `json:"room" validate:"omitempty,max=64"`
	}

	NewPeriod struct {
		Label     string `json:"label" yaml:"label" validate:"required,notblank,max=64"`
		SortOrder int    `json:"sort_order" yaml:"sort_order"`
		StartTime string `json:"start_time" yaml:"start_time" validate:"omitempty,hhmm"`
		EndTime   string `json:"end_time" yaml:"end_time" validate:"omitempty,hhmm"`
		IsBreak   bool   `json:"is_break" yaml:"is_break"`
	}
)

func (a AssignSlot) Validate(validate *validator.Validate) error {
	return validate.Struct(a)
}

func (a AssignSlot) Request(day Weekday, periodID string) AssignRequest {
	return AssignRequest{
		Day:       day,
		PeriodID:  periodID,
		SubjectID: core.CleanString(a.SubjectID),
		TeacherID: a.TeacherID,
		Room:      a.Room,
	}
}

func (o OverrideDetails) Validate(validate *validator.Validate) error {
	return validate.Struct(o)
}

func (o OverrideDetails) Patch() DetailsPatch {
	return DetailsPatch{TeacherID: o.TeacherID, Room: o.Room}
}

func (np NewPeriod) Validate(validate *validator.Validate) error {
	return validate.Struct(np)
}

func (np NewPeriod) Period(schoolID string) Period {
	return Period{
		SchoolID:  schoolID,
		Label:     core.CleanString(np.Label),
		SortOrder: np.SortOrder,
		StartTime: np.StartTime,
		EndTime:   np.EndTime,
		IsBreak:   np.IsBreak,
	}
}

// Custom Validators

func timeOfDayValidation(fl validator.FieldLevel) bool {
	return timeOfDayRegex.MatchString(fl.Field().String())
}

// periodStructValidation checks that a period ends after it starts. HH:MM strings compare lexically.
func periodStructValidation(sl validator.StructLevel) {
	np := sl.Current().Interface().(NewPeriod)
	if np.StartTime == "" || np.EndTime == "" {
		return
	}
	if !timeOfDayRegex.MatchString(np.StartTime) || !timeOfDayRegex.MatchString(np.EndTime) {
		return
	}
	if np.EndTime <= np.StartTime {
		sl.ReportError(np.EndTime, "end_time", "EndTime", timeRangeTag, "")
	}
}
