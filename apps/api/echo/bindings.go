package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

const (
	schoolParam  = "school"
	sectionParam = "section"
	dayParam     = "day"
	periodParam  = "period"
	entryParam   = "entry"
	formatParam  = "format"
)

// SlotParams are the path parameters addressing a slot of a section.
type SlotParams struct {
	SchoolID  string
	SectionID string
	Day       timetable.Weekday
	PeriodID  string
}

// Bind reads the slot from the path. `day` is either 0 (Monday) to 6 (Sunday) or a day name;
// anything else binds to an invalid day, which the engine rejects as an invalid target.
func (p *SlotParams) Bind(ctx echo.Context) {
	p.SchoolID = ctx.Param(schoolParam)
	p.SectionID = ctx.Param(sectionParam)
	p.Day = parseDay(ctx.Param(dayParam))
	p.PeriodID = core.CleanString(ctx.Param(periodParam))
}

func parseDay(s string) timetable.Weekday {
	s = core.CleanString(s, true)
	if d, err := strconv.Atoi(s); err == nil {
		return timetable.Weekday(d)
	}
	for d := timetable.Monday; d <= timetable.Sunday; d++ {
		if strings.ToLower(d.String()) == s {
			return d
		}
	}
	return -1
}
