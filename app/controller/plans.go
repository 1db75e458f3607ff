package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/dto"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"github.com/vibast-solutions/ms-go-plans/app/mapper"
	"github.com/vibast-solutions/ms-go-plans/app/service"
	"github.com/vibast-solutions/ms-go-plans/app/types"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type PlansController struct {
	plansService   *service.PlansService
	webhookService *service.WebhookService
	logger         logrus.FieldLogger
}

func NewPlansController(plansService *service.PlansService, webhookService *service.WebhookService) *PlansController {
	return &PlansController{
		plansService:   plansService,
		webhookService: webhookService,
		logger:         factory.NewModuleLogger("plans-controller"),
	}
}

func (c *PlansController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

// GetPlans always answers 200 with a JSON array; the header tells which
// source produced it.
func (c *PlansController) GetPlans(ctx echo.Context) error {
	req := types.NewGetPlansRequestFromContext(ctx)
	result := c.plansService.GetPlansResult(ctx.Request().Context(), req.Refresh)

	ctx.Response().Header().Set(types.PlansSourceHeader, string(result.Source))
	return ctx.JSON(http.StatusOK, mapper.PlansToResponse(result.Plans))
}

func (c *PlansController) Status(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, mapper.SyncStatusToResponse(c.plansService.Status()))
}

func (c *PlansController) Webhook(ctx echo.Context) error {
	req := types.NewPlansWebhookRequestFromContext(ctx)

	result, err := c.webhookService.Handle(ctx.Request().Context(), req.Signature, service.WebhookEvent{
		Event:     req.Event,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return c.writeError(ctx, http.StatusUnauthorized, "Unauthorized")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Plans webhook failed")
		return c.writeError(ctx, http.StatusInternalServerError, "Internal error")
	}

	return ctx.JSON(http.StatusOK, &dto.WebhookResponse{
		Success:   true,
		Message:   result.Message,
		Timestamp: result.Timestamp.UTC().Format(isoMillis),
	})
}

func (c *PlansController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
