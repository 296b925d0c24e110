package timetable_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/tests"
)

func TestValidators(t *testing.T) {
	validate, translator := testutil.NewValidator()

	tests := []struct {
		name    string
		data    interface{ Validate(*validator.Validate) error }
		wantErr map[string]string
	}{
		{name: "assign: valid", data: timetable.AssignSlot{SubjectID: testutil.Maths}},
		{
			name:    "assign: blank subject",
			data:    timetable.AssignSlot{SubjectID: " "},
			wantErr: map[string]string{"subject_id": "this field cannot be blank"},
		},
		{name: "override: clear both", data: timetable.OverrideDetails{TeacherID: testutil.StrPtr(""), Room: testutil.StrPtr("")}},
		{name: "period: valid", data: timetable.NewPeriod{Label: "Period 1", StartTime: "08:00", EndTime: "08:45"}},
		{name: "period: no times", data: timetable.NewPeriod{Label: "Assembly"}},
		{
			name:    "period: bad time",
			data:    timetable.NewPeriod{Label: "Period 1", StartTime: "8h", EndTime: "24:00"},
			wantErr: map[string]string{"start_time": "time must be formatted as HH:MM", "end_time": "time must be formatted as HH:MM"},
		},
		{
			name:    "period: ends before it starts",
			data:    timetable.NewPeriod{Label: "Period 1", StartTime: "09:00", EndTime: "08:45"},
			wantErr: map[string]string{"end_time": "end time must be after start time"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			got := make(map[string]string)
			for _, fe := range verrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}
