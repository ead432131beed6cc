package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
)

type paymentApi struct {
	svc *payment.Service
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *payment.Service) {
	api := paymentApi{svc: svc}

	g.POST("/enrollments/:id/payments", api.generate, jwt)

	pg := g.Group("/payments", jwt)
	pg.POST("/expire", api.expire, adminMiddleware())
	pg.GET("/:code", api.retrieve)
	pg.POST("/:code/complete", api.complete)
}

type (
	CompleteResponse struct {
		Payment    payment.Payment       `json:"payment"`
		Enrollment enrollment.Enrollment `json:"enrollment"`
	}

	ExpireResponse struct {
		Expired int `json:"expired"`
	}
)

func (api *paymentApi) generate(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.Generate(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "generating payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

// complete simulates the QR scan confirming the payment.
func (api *paymentApi) complete(ctx echo.Context) error {
	p, e, err := api.svc.Complete(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "completing payment")
	}
	return ctx.JSON(http.StatusOK, CompleteResponse{Payment: p, Enrollment: e})
}

func (api *paymentApi) expire(ctx echo.Context) error {
	n, err := api.svc.ExpireStale(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "expiring payments")
	}
	return ctx.JSON(http.StatusOK, ExpireResponse{Expired: n})
}
