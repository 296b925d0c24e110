package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	exportsvc "github.com/trezcool/ratiba/services/export"
)

type timetableApi struct {
	store      *timetable.CatalogStore
	engine     *timetable.Engine
	subscriber timetable.Subscriber
	days       []timetable.Weekday
	validate   *validator.Validate
	logger     core.Logger
}

func registerTimetableAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := timetableApi{
		store:      opts.Store,
		engine:     opts.Engine,
		subscriber: opts.Subscriber,
		days:       opts.Days,
		validate:   opts.Validate,
		logger:     opts.Logger,
	}

	sg := g.Group("/schools/:"+schoolParam, jwt, schoolMiddleware)
	sg.GET("/catalog", api.catalog)
	sg.POST("/catalog/refresh", api.refreshCatalog, editorMiddleware)
	sg.GET("/conflicts", api.schoolConflicts, editorMiddleware)
	if api.subscriber != nil {
		sg.GET("/live", api.live)
	}

	// section endpoints
	dg := sg.Group("/sections/:" + sectionParam)
	dg.GET("/timetable", api.sectionTimetable)
	dg.GET("/conflicts", api.sectionConflicts, editorMiddleware)
	dg.GET("/export", api.export)
	dg.PUT(fmt.Sprintf("/slots/:%s/:%s", dayParam, periodParam), api.assignSlot)
	dg.DELETE(fmt.Sprintf("/slots/:%s/:%s", dayParam, periodParam), api.clearSlot)
	dg.PATCH("/entries/:"+entryParam, api.overrideDetails)
	dg.POST("/publish", api.publish)
	dg.POST("/unpublish", api.unpublish)
}

type (
	SectionTimetable struct {
		Section            timetable.Section             `json:"section"`
		Label              string                        `json:"label"`
		Days               []timetable.Weekday           `json:"days"`
		Periods            []timetable.Period            `json:"periods"`
		Entries            []timetable.Entry             `json:"entries"`
		Grid               []timetable.GridRow           `json:"grid"`
		State              timetable.PublicationState    `json:"state,omitempty"`
		EligibleSubjects   []timetable.Subject           `json:"eligible_subjects,omitempty"`
		TeacherAssignments []timetable.TeacherAssignment `json:"teacher_assignments,omitempty"`
		Conflicts          timetable.Conflicts           `json:"conflicts,omitempty"`
	}

	SectionConflicts struct {
		SectionID string              `json:"section_id"`
		Entries   int                 `json:"entries"` // entries with at least one conflict
		Conflicts timetable.Conflicts `json:"conflicts"`
	}

	PublicationResponse struct {
		Changed int `json:"changed"`
	}
)

// editContext loads what the engine needs to edit the section in the path.
func (api *timetableApi) editContext(ctx echo.Context) (timetable.EditContext, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return timetable.EditContext{}, errors.Wrap(err, "getting context claims")
	}
	ec, _, err := api.store.EditContext(
		ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(sectionParam), claims.CanEditTimetable,
	)
	return ec, errors.Wrap(err, "loading edit context")
}

// Handlers

func (api *timetableApi) catalog(ctx echo.Context) error {
	cat, err := api.store.LoadCatalog(ctx.Request().Context(), ctx.Param(schoolParam))
	if err != nil {
		return errors.Wrap(err, "loading catalog")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *timetableApi) refreshCatalog(ctx echo.Context) error {
	if err := api.store.Refresh(ctx.Request().Context(), ctx.Param(schoolParam)); err != nil {
		return errors.Wrap(err, "refreshing catalog")
	}
	api.engine.CatalogChanged(ctx.Request().Context(), ctx.Param(schoolParam))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) sectionTimetable(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	reqCtx := ctx.Request().Context()
	schoolID := ctx.Param(schoolParam)

	cat, err := api.store.LoadCatalog(reqCtx, schoolID)
	if err != nil {
		return errors.Wrap(err, "loading catalog")
	}
	sc, err := api.store.LoadSectionCatalog(reqCtx, schoolID, ctx.Param(sectionParam))
	if err != nil {
		return errors.Wrap(err, "loading section catalog")
	}

	privileged := claims.CanEditTimetable
	entries := timetable.VisibleEntries(sc.Entries, privileged)
	resp := SectionTimetable{
		Section: sc.Section,
		Label:   cat.SectionLabel(sc.Section.ID),
		Days:    api.days,
		Periods: cat.Periods,
		Entries: entries,
		Grid:    timetable.ToGrid(cat.Periods, entries).Rows(api.days),
	}
	if privileged {
		report, _, err := api.engine.SchoolConflicts(reqCtx, schoolID)
		if err != nil {
			return errors.Wrap(err, "detecting conflicts")
		}
		resp.State = timetable.SectionPublication(sc.Entries)
		resp.EligibleSubjects = sc.EligibleSubjects
		resp.TeacherAssignments = sc.TeacherAssignments
		resp.Conflicts = report.Conflicts.For(sc.Entries)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *timetableApi) schoolConflicts(ctx echo.Context) error {
	report, _, err := api.engine.SchoolConflicts(ctx.Request().Context(), ctx.Param(schoolParam))
	if err != nil {
		return errors.Wrap(err, "detecting conflicts")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *timetableApi) sectionConflicts(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	schoolID, sectionID := ctx.Param(schoolParam), ctx.Param(sectionParam)

	cat, err := api.store.LoadCatalog(reqCtx, schoolID)
	if err != nil {
		return errors.Wrap(err, "loading catalog")
	}
	if _, ok := cat.SectionByID(sectionID); !ok {
		return errHttpNotFound
	}

	report, entries, err := api.engine.SchoolConflicts(reqCtx, schoolID)
	if err != nil {
		return errors.Wrap(err, "detecting conflicts")
	}
	var own []timetable.Entry
	for _, e := range entries {
		if e.SectionID == sectionID {
			own = append(own, e)
		}
	}
	conflicts := report.Conflicts.For(own)
	return ctx.JSON(http.StatusOK, SectionConflicts{SectionID: sectionID, Entries: len(conflicts), Conflicts: conflicts})
}

func (api *timetableApi) export(ctx echo.Context) error {
	format, err := exportsvc.ParseFormat(ctx.QueryParam(formatParam))
	if err != nil {
		return core.NewFieldValidationError(formatParam, err.Error())
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	reqCtx := ctx.Request().Context()
	schoolID := ctx.Param(schoolParam)

	cat, err := api.store.LoadCatalog(reqCtx, schoolID)
	if err != nil {
		return errors.Wrap(err, "loading catalog")
	}
	sc, err := api.store.LoadSectionCatalog(reqCtx, schoolID, ctx.Param(sectionParam))
	if err != nil {
		return errors.Wrap(err, "loading section catalog")
	}

	tt := exportsvc.Timetable{
		Title:       cat.SectionLabel(sc.Section.ID),
		Days:        api.days,
		Periods:     cat.Periods,
		Entries:     timetable.VisibleEntries(sc.Entries, claims.CanEditTimetable),
		TeacherName: cat.TeacherName,
	}
	var buf bytes.Buffer
	if err = exportsvc.Render(&buf, format, tt); err != nil {
		return errors.Wrapf(err, "rendering %s export", format)
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", format.Filename(tt.Title)))
	return ctx.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (api *timetableApi) assignSlot(ctx echo.Context) error {
	var params SlotParams
	params.Bind(ctx)

	var data timetable.AssignSlot
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignSlot")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ec, err := api.editContext(ctx)
	if err != nil {
		return err
	}
	entry, err := api.engine.AssignSlot(ctx.Request().Context(), ec, data.Request(params.Day, params.PeriodID))
	if err != nil {
		return errors.Wrap(err, "assigning slot")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *timetableApi) clearSlot(ctx echo.Context) error {
	var params SlotParams
	params.Bind(ctx)

	ec, err := api.editContext(ctx)
	if err != nil {
		return err
	}
	if err = api.engine.ClearSlot(ctx.Request().Context(), ec, params.Day, params.PeriodID); err != nil {
		return errors.Wrap(err, "clearing slot")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) overrideDetails(ctx echo.Context) error {
	var data timetable.OverrideDetails
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OverrideDetails")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ec, err := api.editContext(ctx)
	if err != nil {
		return err
	}
	entry, err := api.engine.OverrideSlotDetails(ctx.Request().Context(), ec, ctx.Param(entryParam), data.Patch())
	if err != nil {
		return errors.Wrap(err, "overriding slot details")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *timetableApi) publish(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *timetableApi) unpublish(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *timetableApi) setPublished(ctx echo.Context, published bool) error {
	ec, err := api.editContext(ctx)
	if err != nil {
		return err
	}

	var n int
	if published {
		n, err = api.engine.PublishAll(ctx.Request().Context(), ec)
	} else {
		n, err = api.engine.UnpublishAll(ctx.Request().Context(), ec)
	}
	if err != nil {
		return errors.Wrapf(err, "setting section published=%t", published)
	}
	return ctx.JSON(http.StatusOK, PublicationResponse{Changed: n})
}
