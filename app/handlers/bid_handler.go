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

// BidHandlerInterface defines the carrier bidding endpoints
type BidHandlerInterface interface {
	SubmitBid(c fiber.Ctx) error
	WithdrawBid(c fiber.Ctx) error
	AttachDriverInfo(c fiber.Ctx) error
	ListMyBids(c fiber.Ctx) error
	ListMyAwards(c fiber.Ctx) error
}

// BidHandler handles bids placed by authenticated carriers
type BidHandler struct {
	responder
	bidFlow   businessflow.BidFlow
	queryFlow businessflow.AuctionQueryFlow
}

func NewBidHandler(bidFlow businessflow.BidFlow, queryFlow businessflow.AuctionQueryFlow, logger logrus.FieldLogger) BidHandlerInterface {
	return &BidHandler{
		responder: newResponder(logger.WithField("component", "bid_handler")),
		bidFlow:   bidFlow,
		queryFlow: queryFlow,
	}
}

// SubmitBid places or replaces the carrier's bid. The amount may be given in
// cents or as a dollar string.
// @Summary Submit bid
// @Tags Bids
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bid_number path string true "Bid number"
// @Param request body dto.SubmitBidRequest true "Bid"
// @Success 201 {object} dto.APIResponse{data=dto.SubmitBidResponse}
// @Success 200 {object} dto.APIResponse{data=dto.SubmitBidResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 422 {object} dto.APIResponse
// @Router /api/v1/auctions/{bid_number}/bids [post]
func (h *BidHandler) SubmitBid(c fiber.Ctx) error {
	carrierID, ok := middleware.GetCarrierIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Carrier ID not found in context", "MISSING_CARRIER_ID", nil)
	}

	var req dto.SubmitBidRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	var amountCents int64
	switch {
	case req.AmountCents != nil && req.Amount != nil:
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provide either amount_cents or amount, not both", "AMBIGUOUS_AMOUNT", nil)
	case req.AmountCents != nil:
		amountCents = *req.AmountCents
	case req.Amount != nil:
		cents, err := utils.DollarsToCents(*req.Amount)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Amount must be a dollar value with at most two decimals", "INVALID_AMOUNT", nil)
		}
		amountCents = cents
	default:
		return h.ErrorResponse(c, fiber.StatusBadRequest, "amount_cents or amount is required", "VALIDATION_ERROR", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/auctions/:bid_number/bids", utils.RequestTimeout)
	defer cancel()

	result, err := h.bidFlow.SubmitOrUpdateBid(ctx, c.Params("bid_number"), carrierID, amountCents, req.Notes, clientMetadata(c))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to submit bid", "SUBMIT_BID_FAILED")
	}

	if result.Created {
		return h.SuccessResponse(c, fiber.StatusCreated, "Bid placed successfully", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bid updated successfully", result)
}

// WithdrawBid withdraws the carrier's bid while the window is open
// @Summary Withdraw bid
// @Tags Bids
// @Produce json
// @Security BearerAuth
// @Param bid_number path string true "Bid number"
// @Success 200 {object} dto.APIResponse{data=dto.BidDTO}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/auctions/{bid_number}/bids [delete]
func (h *BidHandler) WithdrawBid(c fiber.Ctx) error {
	carrierID, ok := middleware.GetCarrierIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Carrier ID not found in context", "MISSING_CARRIER_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/auctions/:bid_number/bids", utils.RequestTimeout)
	defer cancel()

	result, err := h.bidFlow.WithdrawBid(ctx, c.Params("bid_number"), carrierID, clientMetadata(c))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to withdraw bid", "WITHDRAW_BID_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bid withdrawn successfully", result)
}

// AttachDriverInfo stores driver and equipment details on the winning bid
// @Summary Attach driver info
// @Tags Bids
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bid_number path string true "Bid number"
// @Param request body dto.DriverInfoDTO true "Driver info"
// @Success 200 {object} dto.APIResponse{data=dto.BidDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/auctions/{bid_number}/driver [put]
func (h *BidHandler) AttachDriverInfo(c fiber.Ctx) error {
	carrierID, ok := middleware.GetCarrierIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Carrier ID not found in context", "MISSING_CARRIER_ID", nil)
	}

	var req dto.DriverInfoDTO
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.DriverName = strings.TrimSpace(req.DriverName)
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/auctions/:bid_number/driver", utils.RequestTimeout)
	defer cancel()

	result, err := h.bidFlow.AttachDriverInfo(ctx, c.Params("bid_number"), carrierID, &req, clientMetadata(c))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to attach driver info", "ATTACH_DRIVER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Driver info attached successfully", result)
}

// ListMyBids returns the authenticated carrier's bid history
// @Summary List my bids
// @Tags Bids
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListMyBidsResponse}
// @Router /api/v1/carriers/me/bids [get]
func (h *BidHandler) ListMyBids(c fiber.Ctx) error {
	carrierID, ok := middleware.GetCarrierIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Carrier ID not found in context", "MISSING_CARRIER_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/carriers/me/bids", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.ListMyBids(ctx, carrierID, queryInt(c, "page", 1), queryInt(c, "page_size", utils.DefaultPageSize))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to list bids", "LIST_MY_BIDS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bids retrieved successfully", result)
}

// ListMyAwards returns auctions the authenticated carrier has won
// @Summary List my awards
// @Tags Bids
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListMyAwardsResponse}
// @Router /api/v1/carriers/me/awards [get]
func (h *BidHandler) ListMyAwards(c fiber.Ctx) error {
	carrierID, ok := middleware.GetCarrierIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Carrier ID not found in context", "MISSING_CARRIER_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/carriers/me/awards", utils.RequestTimeout)
	defer cancel()

	result, err := h.queryFlow.ListMyAwards(ctx, carrierID, queryInt(c, "page", 1), queryInt(c, "page_size", utils.DefaultPageSize))
	if err != nil {
		return h.FlowErrorResponse(c, err, "Failed to list awards", "LIST_MY_AWARDS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Awards retrieved successfully", result)
}
