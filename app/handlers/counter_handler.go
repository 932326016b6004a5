package handlers

import (
	"context"
	"log"

	"github.com/amirphl/tally/app/dto"
	"github.com/amirphl/tally/app/views"
	businessflow "github.com/amirphl/tally/business_flow"
	"github.com/amirphl/tally/utils"
	"github.com/gofiber/fiber/v3"
)

// WelcomeComponent is the page component rendering the counter
const WelcomeComponent = "welcome"

type CounterHandlerInterface interface {
	Welcome(c fiber.Ctx) error
	Increment(c fiber.Ctx) error
	GetCounter(c fiber.Ctx) error
}

type CounterHandler struct {
	flow         businessflow.CounterFlow
	assetVersion string
}

// NewCounterHandler builds the counter handler. assetVersion is reported
// as the page version to Inertia clients.
func NewCounterHandler(flow businessflow.CounterFlow, assetVersion string) CounterHandlerInterface {
	return &CounterHandler{flow: flow, assetVersion: assetVersion}
}

func (h *CounterHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: errorCode, Details: details}})
}

func (h *CounterHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// Welcome renders the welcome page with the current count
// @Summary Welcome Page
// @Description Creates the counter at zero on first use. Returns HTML to browsers and the page object to Inertia or JSON clients.
// @Tags Counter
// @Produce html,json
// @Param X-Inertia header string false "Set to true to receive the page object"
// @Success 200 {object} dto.PageModel
// @Failure 500 {object} dto.APIResponse
// @Router / [get]
func (h *CounterHandler) Welcome(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/")
	defer cancel()

	counter, err := h.flow.GetOrCreate(ctx)
	if err != nil {
		return h.storageFailure(c, "Failed to load counter", err)
	}
	return h.renderPage(ctx, c, counter.Count)
}

// Increment adds one to the counter
// @Summary Increment Counter
// @Description Atomically increments the counter and returns the new value.
// @Tags Counter
// @Produce json,html
// @Param X-Inertia header string false "Set to true to receive the page object"
// @Success 200 {object} dto.APIResponse{data=dto.CounterResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /counter [post]
func (h *CounterHandler) Increment(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/counter")
	defer cancel()

	counter, err := h.flow.Increment(ctx)
	if err != nil {
		return h.storageFailure(c, "Failed to increment counter", err)
	}

	if negotiate(c) == formatJSON {
		return h.SuccessResponse(c, fiber.StatusOK, "Counter incremented", dto.CounterResponse{Count: counter.Count})
	}
	return h.renderPage(ctx, c, counter.Count)
}

// GetCounter returns the current count
// @Summary Get Counter
// @Tags Counter
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CounterResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/counter [get]
func (h *CounterHandler) GetCounter(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/counter")
	defer cancel()

	counter, err := h.flow.GetOrCreate(ctx)
	if err != nil {
		return h.storageFailure(c, "Failed to load counter", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Counter retrieved successfully", dto.CounterResponse{Count: counter.Count})
}

func (h *CounterHandler) renderPage(ctx context.Context, c fiber.Ctx, count int64) error {
	page := dto.PageModel{
		Component: WelcomeComponent,
		Props:     dto.WelcomeProps{Count: count},
		URL:       c.OriginalURL(),
		Version:   h.assetVersion,
	}

	c.Vary(InertiaHeader)
	switch negotiate(c) {
	case formatInertia:
		c.Set(InertiaHeader, "true")
		return c.Status(fiber.StatusOK).JSON(page)
	case formatHTML:
		c.Status(fiber.StatusOK).Type("html", "utf-8")
		return views.Welcome(page).Render(ctx, c.Response().BodyWriter())
	default:
		return c.Status(fiber.StatusOK).JSON(page)
	}
}

func (h *CounterHandler) storageFailure(c fiber.Ctx, message string, err error) error {
	log.Printf(`{"time":"%s","level":"error","event":"counter_request_failed","request_id":"%s","path":"%s","error":%q}`,
		utils.UTCNowRFC3339(), requestIDOf(c), c.Path(), err.Error())

	if businessflow.IsStorageError(err) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, message, businessflow.ErrorCode(err), nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, "INTERNAL_ERROR", nil)
}
