package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ArchiveHandlerInterface defines the read-only archive endpoints
type ArchiveHandlerInterface interface {
	ListArchive(c fiber.Ctx) error
	GetArchiveRecord(c fiber.Ctx) error
}

// ArchiveHandler serves archived auctions to reporting clients
type ArchiveHandler struct {
	responder
	queryFlow businessflow.AuctionQueryFlow
}

func NewArchiveHandler(queryFlow businessflow.AuctionQueryFlow, logger logrus.FieldLogger) ArchiveHandlerInterface {
	return &ArchiveHandler{
		responder: newResponder(logger.WithField("component", "archive_handler")),
		queryFlow: queryFlow,
	}
}

// parseArchiveRequest reads archive filters from the query string
func parseArchiveRequest(c fiber.Ctx) (*dto.ListArchiveRequest, string) {
	from, err := queryTime(c, "from")
	if err != nil {
		return nil, err.Error()
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return nil, err.Error()
	}
	minDistance, err := queryIntPtr(c, "min_distance")
	if err != nil {
		return nil, err.Error()
	}
	maxDistance, err := queryIntPtr(c, "max_distance")
	if err != nil {
		return nil, err.Error()
	}
	if to != nil && len(c.Query("to")) == len(time.DateOnly) {
		// a bare date includes the whole day
		end := to.Add(24*time.Hour - time.Second)
		to = &end
	}
	return &dto.ListArchiveRequest{
		From:          from,
		To:            to,
		Tag:           strings.TrimSpace(c.Query("tag")),
		Q:             strings.TrimSpace(c.Query("q")),
		City:          strings.TrimSpace(c.Query("city")),
		SourceChannel: strings.TrimSpace(c.Query("source_channel")),
		Outcome:       strings.TrimSpace(c.Query("outcome")),
		MinDistance:   minDistance,
		MaxDistance:   maxDistance,
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", utils.DefaultPageSize),
	}, ""
}

// ListArchive lists archive records by date range, tag, distance range and outcome
// @Summary List archive
// @Tags Archive
// @Produce json
// @Param from query string false "Received at or after (RFC 3339 or date)"
// @Param to query string false "Received at or before (RFC 3339 or date)"
// @Param tag query string false "Tag"
// @Param q query string false "Bid number contains"
// @Param city query string false "Stop city contains (case-insensitive)"
// @Param source_channel query string false "Source channel"
// @Param min_distance query int false "Minimum distance in miles"
// @Param max_distance query int false "Maximum distance in miles"
// @Param outcome query string false "awarded or unawarded"
// @Success 200 {object} dto.APIResponse{data=dto.ListArchiveResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/archive [get]
func (h *ArchiveHandler) ListArchive(c fiber.Ctx) error {
	req, problem := parseArchiveRequest(c)
	if req == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, problem, "INVALID_ARCHIVE_FILTER", nil)
	}
	if ok, err := h.validate(c, req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/archive", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.ListArchive(ctx, req)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to list archive", "LIST_ARCHIVE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Archive retrieved successfully", result)
}

// GetArchiveRecord returns one archive record with its bid snapshot
// @Summary Get archive record
// @Tags Archive
// @Produce json
// @Param bid_number path string true "Bid number"
// @Success 200 {object} dto.APIResponse{data=dto.ArchivedAuctionDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/archive/{bid_number} [get]
func (h *ArchiveHandler) GetArchiveRecord(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/archive/:bid_number", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.GetArchiveRecord(ctx, c.Params("bid_number"))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to get archive record", "GET_ARCHIVE_RECORD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Archive record retrieved successfully", result)
}
