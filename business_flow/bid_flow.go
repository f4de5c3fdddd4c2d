package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/app/services"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxNotesLen = 1000

// BidFlow records, updates and withdraws carrier bids against open auctions
type BidFlow interface {
	SubmitOrUpdateBid(ctx context.Context, bidNumber, carrierID string, amountCents int64, notes *string, metadata *ClientMetadata) (*dto.SubmitBidResponse, error)
	WithdrawBid(ctx context.Context, bidNumber, carrierID string, metadata *ClientMetadata) (*dto.BidDTO, error)
	AttachDriverInfo(ctx context.Context, bidNumber, carrierID string, req *dto.DriverInfoDTO, metadata *ClientMetadata) (*dto.BidDTO, error)
}

// BidFlowImpl implements BidFlow
type BidFlowImpl struct {
	auctionRepo repository.AuctionRepository
	bidRepo     repository.CarrierBidRepository
	awardRepo   repository.AuctionAwardRepository
	eventRepo   repository.AuctionEventRepository
	notifier    services.AuctionNotifier
	db          *gorm.DB
	clock       utils.Clock
	logger      logrus.FieldLogger
}

func NewBidFlow(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.CarrierBidRepository,
	awardRepo repository.AuctionAwardRepository,
	eventRepo repository.AuctionEventRepository,
	notifier services.AuctionNotifier,
	db *gorm.DB,
	clock utils.Clock,
	logger logrus.FieldLogger,
) BidFlow {
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return &BidFlowImpl{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		awardRepo:   awardRepo,
		eventRepo:   eventRepo,
		notifier:    notifier,
		db:          db,
		clock:       clock,
		logger:      logger,
	}
}

// SubmitOrUpdateBid inserts the carrier's bid or overwrites the one it already holds.
// Openness is checked inside the writing transaction while the auction row is locked,
// so a bid can never land after the window closed.
func (f *BidFlowImpl) SubmitOrUpdateBid(ctx context.Context, bidNumber, carrierID string, amountCents int64, notes *string, metadata *ClientMetadata) (*dto.SubmitBidResponse, error) {
	bidNumber = strings.TrimSpace(bidNumber)
	carrierID = strings.TrimSpace(carrierID)
	if carrierID == "" {
		return nil, NewBusinessError("INVALID_CARRIER", "Carrier identity is required", ErrInvalidCarrier)
	}
	if amountCents <= 0 {
		bidMutations.WithLabelValues("submit", "invalid_amount").Inc()
		return nil, NewBusinessError("INVALID_AMOUNT", "Bid amount must be greater than zero", ErrInvalidAmount)
	}
	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		if len([]rune(trimmed)) > maxNotesLen {
			return nil, NewBusinessError("INVALID_NOTES", "Notes are too long", nil)
		}
		if trimmed == "" {
			notes = nil
		} else {
			notes = &trimmed
		}
	}

	var (
		bid     *models.CarrierBid
		created bool
	)
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		now := f.clock.Now().UTC()

		auction, err := f.openAuction(txCtx, bidNumber, now)
		if err != nil {
			return err
		}

		bid = &models.CarrierBid{
			AuctionID:   auction.ID,
			CarrierID:   carrierID,
			BidNumber:   auction.BidNumber,
			AmountCents: amountCents,
			Notes:       notes,
			SubmittedAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created, err = f.bidRepo.Upsert(txCtx, bid)
		if err != nil {
			return err
		}

		eventType := models.AuctionEventBidUpdated
		if created {
			eventType = models.AuctionEventBidPlaced
		}
		return recordEvent(txCtx, f.eventRepo, auctionEvent{
			auction:     auction,
			eventType:   eventType,
			carrierID:   &carrierID,
			amountCents: &amountCents,
		}, metadata, now)
	})
	if err != nil {
		bidMutations.WithLabelValues("submit", resultLabel(err)).Inc()
		return nil, f.wrapError("SUBMIT_BID_FAILED", "Failed to submit bid", err)
	}

	action := "update"
	if created {
		action = "create"
	}
	bidMutations.WithLabelValues(action, "ok").Inc()

	f.logger.WithFields(logrus.Fields{
		"bid_number":   bid.BidNumber,
		"carrier_id":   carrierID,
		"amount_cents": amountCents,
		"created":      created,
	}).Info("bid recorded")

	f.notifier.Notify(ctx, services.AuctionNotification{
		Type:        services.NotificationBidPlaced,
		BidNumber:   bid.BidNumber,
		CarrierID:   carrierID,
		AmountCents: utils.ToPtr(bid.AmountCents),
		OccurredAt:  bid.SubmittedAt,
	})

	return &dto.SubmitBidResponse{
		Created: created,
		Bid:     ToBidDTO(bid),
	}, nil
}

// WithdrawBid marks the carrier's live bid withdrawn. The row is kept for history.
func (f *BidFlowImpl) WithdrawBid(ctx context.Context, bidNumber, carrierID string, metadata *ClientMetadata) (*dto.BidDTO, error) {
	bidNumber = strings.TrimSpace(bidNumber)
	carrierID = strings.TrimSpace(carrierID)
	if carrierID == "" {
		return nil, NewBusinessError("INVALID_CARRIER", "Carrier identity is required", ErrInvalidCarrier)
	}

	var bid *models.CarrierBid
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		now := f.clock.Now().UTC()

		auction, err := f.openAuction(txCtx, bidNumber, now)
		if err != nil {
			return err
		}

		ok, err := f.bidRepo.Withdraw(txCtx, auction.ID, carrierID, now)
		if err != nil {
			return err
		}
		if !ok {
			return NewBusinessError("BID_NOT_FOUND", "No live bid found for this carrier", ErrBidNotFound)
		}

		bid, err = f.bidRepo.ByAuctionAndCarrier(txCtx, auction.ID, carrierID)
		if err != nil {
			return err
		}
		if bid == nil {
			return NewBusinessError("BID_NOT_FOUND", "No live bid found for this carrier", ErrBidNotFound)
		}

		return recordEvent(txCtx, f.eventRepo, auctionEvent{
			auction:     auction,
			eventType:   models.AuctionEventBidWithdrawn,
			carrierID:   &carrierID,
			amountCents: utils.ToPtr(bid.AmountCents),
		}, metadata, now)
	})
	if err != nil {
		bidMutations.WithLabelValues("withdraw", resultLabel(err)).Inc()
		return nil, f.wrapError("WITHDRAW_BID_FAILED", "Failed to withdraw bid", err)
	}
	bidMutations.WithLabelValues("withdraw", "ok").Inc()

	f.logger.WithFields(logrus.Fields{
		"bid_number": bid.BidNumber,
		"carrier_id": carrierID,
	}).Info("bid withdrawn")

	f.notifier.Notify(ctx, services.AuctionNotification{
		Type:       services.NotificationBidWithdrawn,
		BidNumber:  bid.BidNumber,
		CarrierID:  carrierID,
		OccurredAt: utils.Deref(bid.WithdrawnAt),
	})

	out := ToBidDTO(bid)
	return &out, nil
}

// AttachDriverInfo stores driver and equipment details on the winning bid. Only the
// awarded carrier may do this, and only after the award exists.
func (f *BidFlowImpl) AttachDriverInfo(ctx context.Context, bidNumber, carrierID string, req *dto.DriverInfoDTO, metadata *ClientMetadata) (*dto.BidDTO, error) {
	if req == nil || strings.TrimSpace(req.DriverName) == "" {
		return nil, NewBusinessError("INVALID_DRIVER_INFO", "Driver name is required", nil)
	}
	bidNumber = strings.TrimSpace(bidNumber)

	info, err := json.Marshal(models.DriverInfo{
		DriverName:    strings.TrimSpace(req.DriverName),
		DriverPhone:   strings.TrimSpace(req.DriverPhone),
		TruckNumber:   strings.TrimSpace(req.TruckNumber),
		TrailerNumber: strings.TrimSpace(req.TrailerNumber),
		EquipmentType: strings.TrimSpace(req.EquipmentType),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, NewBusinessError("INVALID_DRIVER_INFO", "Invalid driver info", err)
	}

	var bid *models.CarrierBid
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		now := f.clock.Now().UTC()

		auction, err := f.auctionRepo.ByBidNumber(txCtx, bidNumber)
		if err != nil {
			return err
		}
		if auction == nil {
			return NewBusinessError("AUCTION_NOT_FOUND", "Auction not found", ErrAuctionNotFound)
		}
		if !auction.IsClosed() {
			return NewBusinessError("AUCTION_NOT_CLOSED", "Auction has not been awarded yet", ErrAuctionNotClosed)
		}

		award, err := f.awardRepo.ByAuctionID(txCtx, auction.ID)
		if err != nil {
			return err
		}
		if award == nil || award.WinnerCarrierID != carrierID {
			return NewBusinessError("NOT_AUCTION_WINNER", "Only the awarded carrier can attach driver info", ErrNotAuctionWinner)
		}

		if err := f.bidRepo.SetDriverInfo(txCtx, award.BidID, info, now); err != nil {
			return err
		}
		bid, err = f.bidRepo.ByID(txCtx, award.BidID)
		if err != nil {
			return err
		}
		if bid == nil {
			return NewBusinessError("BID_NOT_FOUND", "Winning bid not found", ErrBidNotFound)
		}

		return recordEvent(txCtx, f.eventRepo, auctionEvent{
			auction:   auction,
			eventType: models.AuctionEventDriverAttached,
			carrierID: &carrierID,
		}, metadata, now)
	})
	if err != nil {
		return nil, f.wrapError("ATTACH_DRIVER_FAILED", "Failed to attach driver info", err)
	}

	out := ToBidDTO(bid)
	return &out, nil
}

// openAuction loads the auction under a shared row lock and rejects it unless it
// accepts bids at now
func (f *BidFlowImpl) openAuction(ctx context.Context, bidNumber string, now time.Time) (*models.Auction, error) {
	auction, err := f.auctionRepo.ByBidNumberLocked(ctx, bidNumber, repository.LockForShare)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, NewBusinessError("AUCTION_NOT_FOUND", "Auction not found", ErrAuctionNotFound)
	}
	if !auction.IsOpenAt(now) {
		return nil, NewBusinessError("AUCTION_CLOSED", "Auction is closed for bidding", ErrAuctionClosed)
	}
	return auction, nil
}

// wrapError passes business errors through and marks everything else as a retryable storage failure
func (f *BidFlowImpl) wrapError(code, message string, err error) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}
	f.logger.WithFields(logrus.Fields{"code": code, "error": err.Error()}).Error("bid storage failure")
	return storageError(code, message, err)
}

func resultLabel(err error) string {
	switch {
	case IsAuctionNotFound(err):
		return "not_found"
	case IsAuctionClosed(err):
		return "closed"
	case IsBidNotFound(err):
		return "bid_not_found"
	default:
		return "error"
	}
}
