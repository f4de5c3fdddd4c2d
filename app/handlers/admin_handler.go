package handlers

import (
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// AdminHandlerInterface defines operator endpoints
type AdminHandlerInterface interface {
	ArchiveStatistics(c fiber.Ctx) error
	ArchiveIntegrity(c fiber.Ctx) error
	ExportArchive(c fiber.Ctx) error
	RunArchive(c fiber.Ctx) error
	CloseAuction(c fiber.Ctx) error
	ListAuctionEvents(c fiber.Ctx) error
}

// AdminHandler exposes archive maintenance and the auction audit trail
type AdminHandler struct {
	responder
	archiveFlow  businessflow.ArchiveFlow
	awardFlow    businessflow.AwardFlow
	queryFlow    businessflow.AuctionQueryFlow
	defaultGrace time.Duration
}

func NewAdminHandler(archiveFlow businessflow.ArchiveFlow, awardFlow businessflow.AwardFlow, queryFlow businessflow.AuctionQueryFlow, defaultGrace time.Duration, logger logrus.FieldLogger) AdminHandlerInterface {
	return &AdminHandler{
		responder:    newResponder(logger.WithField("component", "admin_handler")),
		archiveFlow:  archiveFlow,
		awardFlow:    awardFlow,
		queryFlow:    queryFlow,
		defaultGrace: defaultGrace,
	}
}

// ArchiveStatistics reports archive volume and time range
// @Summary Archive statistics
// @Tags Admin Archive
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ArchiveStatisticsResponse}
// @Router /api/v1/admin/archive/stats [get]
func (h *AdminHandler) ArchiveStatistics(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/archive/stats", utils.RequestTimeout)
	defer cancel()

	result, err := h.archiveFlow.ArchiveStatistics(ctx)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to compute archive statistics", "ARCHIVE_STATISTICS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Archive statistics retrieved successfully", result)
}

// ArchiveIntegrity cross-checks auctions against archive records
// @Summary Archive integrity
// @Tags Admin Archive
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ArchiveIntegrityResponse}
// @Router /api/v1/admin/archive/integrity [get]
func (h *AdminHandler) ArchiveIntegrity(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/archive/integrity", utils.RequestTimeout)
	defer cancel()

	result, err := h.archiveFlow.VerifyArchiveIntegrity(ctx)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to verify archive integrity", "ARCHIVE_INTEGRITY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Archive integrity verified", result)
}

// ExportArchive downloads filtered archive records as an Excel workbook
// @Summary Export archive
// @Tags Admin Archive
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {string} string "Excel file"
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/archive/export [get]
func (h *AdminHandler) ExportArchive(c fiber.Ctx) error {
	req, problem := parseArchiveRequest(c)
	if req == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, problem, "INVALID_ARCHIVE_FILTER", nil)
	}
	if ok, err := h.validate(c, req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/archive/export", 60*time.Second)
	defer cancel()

	filename, data, err := h.archiveFlow.ExportArchiveXLSX(ctx, req)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to generate Excel", "DOWNLOAD_FAILED")
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// RunArchive triggers an archive pass outside the scheduler
// @Summary Run archive pass
// @Tags Admin Archive
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RunArchiveRequest false "Grace period"
// @Success 200 {object} dto.APIResponse{data=dto.RunArchiveResponse}
// @Router /api/v1/admin/archive/run [post]
func (h *AdminHandler) RunArchive(c fiber.Ctx) error {
	var req dto.RunArchiveRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	grace := h.defaultGrace
	if req.OlderThanMinutes != nil {
		grace = time.Duration(*req.OlderThanMinutes) * time.Minute
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/archive/run", 5*time.Minute)
	defer cancel()

	result, err := h.archiveFlow.ArchiveClosedAuctions(ctx, grace)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to run archive", "RUN_ARCHIVE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Archive pass finished", dto.RunArchiveResponse{
		Archived: result.Archived,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Errors:   result.Errors,
	})
}

// CloseAuction closes one expired auction immediately instead of waiting for the engine tick
// @Summary Close auction
// @Tags Admin Auctions
// @Produce json
// @Security BearerAuth
// @Param bid_number path string true "Bid number"
// @Success 200 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/auctions/{bid_number}/close [post]
func (h *AdminHandler) CloseAuction(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/auctions/:bid_number/close", utils.RequestTimeout)
	defer cancel()

	outcome, err := h.awardFlow.CloseAuction(ctx, c.Params("bid_number"))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to close auction", "CLOSE_AUCTION_FAILED")
	}

	data := fiber.Map{
		"bid_number": outcome.BidNumber,
		"outcome":    outcome.Outcome,
	}
	if outcome.Award != nil {
		data["award"] = businessflow.ToAwardDTO(outcome.Award)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Auction closed", data)
}

// ListAuctionEvents returns the lifecycle log of one auction
// @Summary List auction events
// @Tags Admin Auctions
// @Produce json
// @Security BearerAuth
// @Param bid_number path string true "Bid number"
// @Success 200 {object} dto.APIResponse{data=dto.ListAuctionEventsResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/auctions/{bid_number}/events [get]
func (h *AdminHandler) ListAuctionEvents(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/auctions/:bid_number/events", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.ListAuctionEvents(ctx, c.Params("bid_number"), queryInt(c, "page", 1), queryInt(c, "page_size", 50))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to list auction events", "LIST_AUCTION_EVENTS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Auction events retrieved successfully", result)
}
