package handlers

import (
	"strings"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/app/middleware"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// AuctionHandlerInterface defines the auction board and ingestion endpoints
type AuctionHandlerInterface interface {
	CreateAuction(c fiber.Ctx) error
	ListOpenAuctions(c fiber.Ctx) error
	GetBidSummary(c fiber.Ctx) error
}

// AuctionHandler serves auction postings and the open board
type AuctionHandler struct {
	responder
	ingestFlow businessflow.AuctionIngestFlow
	queryFlow  businessflow.AuctionQueryFlow
}

func NewAuctionHandler(ingestFlow businessflow.AuctionIngestFlow, queryFlow businessflow.AuctionQueryFlow, logger logrus.FieldLogger) AuctionHandlerInterface {
	return &AuctionHandler{
		responder:  newResponder(logger.WithField("component", "auction_handler")),
		ingestFlow: ingestFlow,
		queryFlow:  queryFlow,
	}
}

// CreateAuction posts a new load from the ingestion channel. Reposting an
// existing bid number returns the stored auction with created=false.
// @Summary Ingest auction
// @Tags Auctions
// @Accept json
// @Produce json
// @Param request body dto.CreateAuctionRequest true "Auction posting"
// @Success 201 {object} dto.APIResponse{data=dto.CreateAuctionResponse}
// @Success 200 {object} dto.APIResponse{data=dto.CreateAuctionResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/ingest/auctions [post]
func (h *AuctionHandler) CreateAuction(c fiber.Ctx) error {
	var req dto.CreateAuctionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/ingest/auctions", utils.RequestTimeout)
	defer cancel()

	result, err := h.ingestFlow.CreateAuction(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to create auction", "CREATE_AUCTION_FAILED")
	}

	if !result.Created {
		return h.SuccessResponse(c, fiber.StatusOK, "Auction already exists", result)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Auction created successfully", result)
}

// ListOpenAuctions returns auctions whose bidding window is still open
// @Summary List open auctions
// @Tags Auctions
// @Produce json
// @Param q query string false "Bid number search"
// @Param tag query string false "Tag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListOpenAuctionsResponse}
// @Router /api/v1/auctions [get]
func (h *AuctionHandler) ListOpenAuctions(c fiber.Ctx) error {
	req := dto.ListOpenAuctionsRequest{
		Q:        strings.TrimSpace(c.Query("q")),
		Tag:      strings.TrimSpace(c.Query("tag")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", utils.DefaultPageSize),
	}

	ctx, cancel := requestContext(c, "/api/v1/auctions", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.ListOpenAuctions(ctx, &req)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to list auctions", "LIST_OPEN_AUCTIONS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Open auctions retrieved successfully", result)
}

// GetBidSummary returns an auction with its bids and statistics. Authenticated
// carriers also get their own bid.
// @Summary Auction bid summary
// @Tags Auctions
// @Produce json
// @Param bid_number path string true "Bid number"
// @Success 200 {object} dto.APIResponse{data=dto.BidSummaryResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/auctions/{bid_number} [get]
func (h *AuctionHandler) GetBidSummary(c fiber.Ctx) error {
	bidNumber := strings.TrimSpace(c.Params("bid_number"))
	if bidNumber == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Bid number is required", "INVALID_BID_NUMBER", nil)
	}
	carrierID, _ := middleware.GetCarrierIDFromContext(c)

	ctx, cancel := requestContext(c, "/api/v1/auctions/:bid_number", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.GetBidSummary(ctx, bidNumber, carrierID)
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to get bid summary", "GET_BID_SUMMARY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bid summary retrieved successfully", result)
}
