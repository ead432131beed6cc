package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/schedule"
)

type scheduleApi struct {
	svc *schedule.Service
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *schedule.Service) {
	api := scheduleApi{svc: svc}
	staff := roleMiddleware(core.RoleAdmin, core.RoleInstitutionManager, core.RoleTutor)

	rg := g.Group("/rooms", jwt)
	rg.GET("/free", api.freeRooms)
	rg.GET("/:id/availability", api.roomAvailability)
	rg.GET("/:id/slots", api.freeSlots)

	g.GET("/tutors/:id/availability", api.tutorAvailability, jwt)

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, staff)
	ag.PUT("", api.update, staff)
	ag.POST("/deactivate", api.deactivate, staff)
	ag.POST("/reactivate", api.reactivate, staff)
}

// availabilityQuery reads day, start, end and the optional exclude_* key from the query string.
func availabilityQuery(ctx echo.Context) (schedule.AvailabilityQuery, error) {
	qp := newQueryParams(ctx)
	q := schedule.AvailabilityQuery{
		Interval: schedule.Interval{Start: qp.Clock("start"), End: qp.Clock("end")},
	}
	if day := qp.Day("day", true); day != nil {
		q.Day = *day
	}
	excl := schedule.AssignmentKey{
		RoomID:    qp.Int("exclude_room"),
		SessionID: qp.Int("exclude_session"),
		TutorID:   qp.Int("exclude_tutor"),
	}
	if err := qp.Err(); err != nil {
		return q, err
	}
	if excl != (schedule.AssignmentKey{}) {
		if err := excl.Validate(); err != nil {
			return q, err
		}
		q.Exclude = &excl
	}
	return q, nil
}

func (api *scheduleApi) roomAvailability(ctx echo.Context) error {
	roomID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	q, err := availabilityQuery(ctx)
	if err != nil {
		return err
	}
	q.RoomID = roomID

	avail, err := api.svc.CheckAvailability(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "checking room availability")
	}
	return ctx.JSON(http.StatusOK, avail)
}

func (api *scheduleApi) tutorAvailability(ctx echo.Context) error {
	tutorID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	q, err := availabilityQuery(ctx)
	if err != nil {
		return err
	}
	q.TutorID = tutorID

	avail, err := api.svc.CheckTutorAvailability(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "checking tutor availability")
	}
	return ctx.JSON(http.StatusOK, avail)
}

func (api *scheduleApi) freeSlots(ctx echo.Context) error {
	roomID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	qp := newQueryParams(ctx)
	day := qp.Day("day", true)
	if err = qp.Err(); err != nil {
		return err
	}

	slots, err := api.svc.ListFreeSlots(ctx.Request().Context(), roomID, *day)
	if err != nil {
		return errors.Wrap(err, "listing free slots")
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *scheduleApi) freeRooms(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	day := qp.Day("day", true)
	iv := schedule.Interval{Start: qp.Clock("start"), End: qp.Clock("end")}
	institutionID := qp.Int("institution")
	if err := qp.Err(); err != nil {
		return err
	}

	rooms, err := api.svc.ListFreeRooms(ctx.Request().Context(), *day, iv, institutionID)
	if err != nil {
		return errors.Wrap(err, "listing free rooms")
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *scheduleApi) query(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := schedule.QueryFilter{
		RoomID:    qp.Int("room"),
		TutorID:   qp.Int("tutor"),
		SessionID: qp.Int("session"),
		Day:       qp.Day("day", false),
	}
	if active := qp.Bool("active"); active != nil {
		filter.ActiveOnly = *active
	}
	if err := qp.Err(); err != nil {
		return err
	}

	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []schedule.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *scheduleApi) update(ctx echo.Context) error {
	var data schedule.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.UpdateAssignment(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *scheduleApi) deactivate(ctx echo.Context) error {
	return api.toggle(ctx, api.svc.DeactivateAssignment)
}

func (api *scheduleApi) reactivate(ctx echo.Context) error {
	return api.toggle(ctx, api.svc.ReactivateAssignment)
}

func (api *scheduleApi) toggle(
	ctx echo.Context,
	fn func(ctx context.Context, actor core.Actor, key schedule.AssignmentKey) (schedule.Assignment, error),
) error {
	var key schedule.AssignmentKey
	if err := ctx.Bind(&key); err != nil {
		return errors.Wrap(err, "binding to AssignmentKey")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	a, err := fn(ctx.Request().Context(), actor, key)
	if err != nil {
		return errors.Wrap(err, "toggling assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}
