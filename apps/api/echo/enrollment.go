package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
)

type enrollmentApi struct {
	svc *enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *enrollment.Service) {
	api := enrollmentApi{svc: svc}
	staff := roleMiddleware(core.RoleAdmin, core.RoleInstitutionManager, core.RoleTutor)

	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.request)
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.POST("/:id/approve", api.approve, staff)
	eg.POST("/:id/reject", api.reject, staff)
	eg.POST("/:id/cancel", api.cancel, staff)
	eg.POST("/:id/withdraw", api.withdraw, roleMiddleware(core.RoleStudent))

	sg := g.Group("/sessions", jwt)
	sg.GET("/:id/seats", api.seats)
	sg.PUT("/:id/capacity", api.resize, staff)
}

type (
	ReasonRequest struct {
		Reason string `json:"reason"`
	}

	CapacityRequest struct {
		Capacity int `json:"capacity"`
	}
)

func (api *enrollmentApi) request(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	e, err := api.svc.RequestEnrollment(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "requesting enrollment")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	qp := newQueryParams(ctx)
	filter := enrollment.QueryFilter{
		SessionID: qp.Int("session"),
		StudentID: qp.Int("student"),
	}
	for _, s := range qp.Strings("status") {
		filter.Statuses = append(filter.Statuses, enrollment.Status(s))
	}
	for _, s := range qp.Strings("request_status") {
		filter.RequestStatuses = append(filter.RequestStatuses, enrollment.RequestStatus(s))
	}
	if active := qp.Bool("active"); active != nil {
		filter.ActiveOnly = *active
	}
	if err := qp.Err(); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	enrollments, err := api.svc.QueryEnrollments(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	e, err := api.svc.GetEnrollment(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) approve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	e, err := api.svc.Approve(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "approving enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) reject(ctx echo.Context) error {
	return api.withReason(ctx, api.svc.Reject, "rejecting enrollment")
}

func (api *enrollmentApi) cancel(ctx echo.Context) error {
	return api.withReason(ctx, api.svc.Cancel, "cancelling enrollment")
}

func (api *enrollmentApi) withReason(
	ctx echo.Context,
	fn func(ctx context.Context, actor core.Actor, id int, reason string) (enrollment.Enrollment, error),
	action string,
) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data ReasonRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReasonRequest")
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	e, err := fn(ctx.Request().Context(), actor, id, data.Reason)
	if err != nil {
		return errors.Wrap(err, action)
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) withdraw(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	e, err := api.svc.Withdraw(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "withdrawing enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) seats(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	summary, err := api.svc.Seats(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "counting seats")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *enrollmentApi) resize(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data CapacityRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CapacityRequest")
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	sess, err := api.svc.ResizeSession(ctx.Request().Context(), actor, id, data.Capacity)
	if err != nil {
		return errors.Wrap(err, "resizing tutoring session")
	}
	return ctx.JSON(http.StatusOK, sess)
}
