package handlers

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/identity"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/services"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/store"
	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) CreateReport(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	report, err := h.reports.Submit(c.UserContext(), services.SubmitInput{
		TargetUserID: req.UserID,
		Reason:       req.Reason,
		ReporterID:   userID,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewReportView(report))
}

func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	var status models.ReportStatus
	if raw := c.Query("status"); raw != "" {
		parsed, ok := models.ParseReportStatus(raw)
		if !ok {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid status: must be open, claimed, or closed")
		}
		status = parsed
	}

	reports, err := h.reports.List(c.UserContext(), status)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(dto.ReportListResponse{
		Reports: dto.NewReportViews(reports),
		Total:   len(reports),
	})
}

func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	id, ok := reportID(c)
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid report ID")
	}

	report, err := h.reports.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.NewReportView(report))
}

func (h *ReportHandler) ClaimReport(c *fiber.Ctx) error {
	id, ok := reportID(c)
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid report ID")
	}
	staffID, err := identity.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	report, err := h.reports.Claim(c.UserContext(), id, staffID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.NewReportView(report))
}

func (h *ReportHandler) CloseReport(c *fiber.Ctx) error {
	id, ok := reportID(c)
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid report ID")
	}
	staffID, err := identity.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.CloseReportRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	report, err := h.reports.Close(c.UserContext(), id, staffID, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.NewReportView(report))
}

// fail maps lifecycle errors to HTTP responses. Anything unexpected is passed
// on to the app error handler, which logs it and hides the details.
func (h *ReportHandler) fail(c *fiber.Ctx, err error) error {
	var rl *services.RateLimitedError
	switch {
	case errors.As(err, &rl):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		return errorJSON(c, fiber.StatusTooManyRequests, "Report cooldown active; try again in "+rl.RetryAfter.Round(time.Second).String())
	case errors.Is(err, services.ErrValidation):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyClaimed), errors.Is(err, services.ErrAlreadyClosed):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotClaimant):
		return errorJSON(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, err.Error())
	}
	return err
}

func reportID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}
