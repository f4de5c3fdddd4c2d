package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/freight-bidding/app/services"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AwardEngineOptions tunes the expiration and award engine
type AwardEngineOptions struct {
	BatchSize       int
	ClaimStaleAfter time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
}

func (o AwardEngineOptions) withDefaults() AwardEngineOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.ClaimStaleAfter <= 0 {
		o.ClaimStaleAfter = 30 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffMax < o.BackoffBase {
		o.BackoffMax = 5 * time.Minute
	}
	return o
}

// CloseOutcome is the decision made for one auction
type CloseOutcome struct {
	BidNumber string
	Outcome   models.AuctionOutcome
	Award     *models.AuctionAward
}

// CloseResult summarizes one engine pass
type CloseResult struct {
	Awarded   int
	Unawarded int
	Skipped   int
	Failed    int
}

// AwardFlow closes auctions whose bidding window elapsed and picks their winners
type AwardFlow interface {
	CloseDueAuctions(ctx context.Context) (*CloseResult, error)
	CloseAuction(ctx context.Context, bidNumber string) (*CloseOutcome, error)
}

// AwardFlowImpl implements AwardFlow
type AwardFlowImpl struct {
	auctionRepo repository.AuctionRepository
	bidRepo     repository.CarrierBidRepository
	awardRepo   repository.AuctionAwardRepository
	eventRepo   repository.AuctionEventRepository
	notifier    services.AuctionNotifier
	locker      AuctionLocker
	db          *gorm.DB
	clock       utils.Clock
	logger      logrus.FieldLogger
	opts        AwardEngineOptions

	backoffMu sync.Mutex
	backoff   map[uint]retryState
}

type retryState struct {
	failures int
	until    time.Time
}

// NewAwardFlow builds the award engine. locker may be nil, in which case the
// claim compare-and-swap is the only guard.
func NewAwardFlow(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.CarrierBidRepository,
	awardRepo repository.AuctionAwardRepository,
	eventRepo repository.AuctionEventRepository,
	notifier services.AuctionNotifier,
	locker AuctionLocker,
	db *gorm.DB,
	clock utils.Clock,
	logger logrus.FieldLogger,
	opts AwardEngineOptions,
) AwardFlow {
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return &AwardFlowImpl{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		awardRepo:   awardRepo,
		eventRepo:   eventRepo,
		notifier:    notifier,
		locker:      locker,
		db:          db,
		clock:       clock,
		logger:      logger,
		opts:        opts.withDefaults(),
		backoff:     make(map[uint]retryState),
	}
}

// CloseDueAuctions runs one engine pass over every auction due for closing.
// Lost races are counted as skipped; failures are retried on later passes.
func (f *AwardFlowImpl) CloseDueAuctions(ctx context.Context) (*CloseResult, error) {
	now := f.clock.Now().UTC()
	// backed-off auctions are filtered in the query so they cannot fill the batch
	waiting := f.backedOff(now)
	due, err := f.auctionRepo.ListDueForClosing(ctx, now, now.Add(-f.opts.ClaimStaleAfter), waiting, f.opts.BatchSize)
	if err != nil {
		engineFailures.WithLabelValues("list").Inc()
		return nil, storageError("LIST_DUE_AUCTIONS_FAILED", "Failed to list auctions due for closing", err)
	}

	result := &CloseResult{Skipped: len(waiting)}
	for _, auction := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		outcome, err := f.closeAuction(ctx, auction)
		switch {
		case err == nil && outcome.Outcome == models.AuctionOutcomeAwarded:
			result.Awarded++
		case err == nil:
			result.Unawarded++
		case IsClaimLost(err) || IsLockBusy(err):
			result.Skipped++
		default:
			result.Failed++
		}
	}
	return result, nil
}

// CloseAuction closes a single auction by bid number. A caller that loses the race
// to another worker gets ErrClaimLost or ErrLockBusy.
func (f *AwardFlowImpl) CloseAuction(ctx context.Context, bidNumber string) (*CloseOutcome, error) {
	auction, err := f.auctionRepo.ByBidNumber(ctx, bidNumber)
	if err != nil {
		return nil, storageError("CLOSE_AUCTION_FAILED", "Failed to load auction", err)
	}
	if auction == nil {
		return nil, NewBusinessError("AUCTION_NOT_FOUND", "Auction not found", ErrAuctionNotFound)
	}
	if auction.IsClosed() {
		return nil, NewBusinessError("AUCTION_ALREADY_CLOSED", "Auction already closed", ErrClaimLost)
	}
	if f.clock.Now().Before(auction.WindowClosesAt) {
		return nil, NewBusinessError("AUCTION_NOT_CLOSED", "Bidding window still open", ErrAuctionNotClosed)
	}
	return f.closeAuction(ctx, auction)
}

func (f *AwardFlowImpl) closeAuction(ctx context.Context, auction *models.Auction) (*CloseOutcome, error) {
	log := f.logger.WithFields(logrus.Fields{
		"bid_number": auction.BidNumber,
		"auction_id": auction.ID,
	})

	if f.locker != nil {
		release, err := f.locker.TryLock(ctx, auction.BidNumber)
		if err != nil {
			if IsLockBusy(err) {
				engineClaimConflicts.Inc()
				return nil, err
			}
			// lock backend trouble does not block closing; the claim still guards it
			log.WithField("error", err.Error()).Warn("auction lock unavailable, relying on claim")
		} else {
			defer release()
		}
	}

	now := f.clock.Now().UTC()
	token := uuid.NewString()
	claimed, err := f.auctionRepo.Claim(ctx, auction.ID, token, now, now.Add(-f.opts.ClaimStaleAfter))
	if err != nil {
		engineFailures.WithLabelValues("claim").Inc()
		f.recordFailure(auction.ID, now)
		log.WithField("error", err.Error()).Warn("failed to claim auction")
		return nil, storageError("CLAIM_AUCTION_FAILED", "Failed to claim auction", err)
	}
	if !claimed {
		engineClaimConflicts.Inc()
		log.Debug("auction claimed by another worker")
		return nil, ErrClaimLost
	}

	outcome, err := f.decide(ctx, auction.ID, token, now)
	if err != nil {
		f.abandonClaim(ctx, auction, token, err, log)
		return nil, decideError(err)
	}

	f.clearFailures(auction.ID)
	auctionsClosed.WithLabelValues(outcome.Outcome.String()).Inc()

	fields := logrus.Fields{"outcome": outcome.Outcome.String()}
	notification := services.AuctionNotification{
		Type:       services.NotificationAuctionClosedUnawarded,
		BidNumber:  outcome.BidNumber,
		OccurredAt: now,
	}
	if outcome.Award != nil {
		fields["winner_carrier_id"] = outcome.Award.WinnerCarrierID
		fields["winner_amount_cents"] = outcome.Award.WinnerAmountCents
		notification.Type = services.NotificationAuctionAwarded
		notification.CarrierID = outcome.Award.WinnerCarrierID
		notification.AmountCents = utils.ToPtr(outcome.Award.WinnerAmountCents)
	}
	log.WithFields(fields).Info("auction closed")
	f.notifier.Notify(ctx, notification)

	return outcome, nil
}

// decide picks the winner and finalizes the auction in one transaction. The auction
// row is locked for update so no withdrawal can slip in between reading the lowest
// bid and writing the award.
func (f *AwardFlowImpl) decide(ctx context.Context, auctionID uint, token string, now time.Time) (*CloseOutcome, error) {
	var outcome *CloseOutcome
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		auction, err := f.auctionRepo.ByIDLocked(txCtx, auctionID, repository.LockForUpdate)
		if err != nil {
			return err
		}
		if auction == nil {
			return ErrAuctionNotFound
		}
		if auction.Status != models.AuctionStatusClosing || auction.ClaimToken == nil || *auction.ClaimToken != token {
			return ErrStaleClaim
		}

		if err := recordEvent(txCtx, f.eventRepo, auctionEvent{
			auction:   auction,
			eventType: models.AuctionEventClaimed,
			extra:     map[string]any{"claim_token": token, "attempt": auction.ClaimAttempts},
		}, nil, now); err != nil {
			return err
		}

		winner, err := f.bidRepo.LowestEligible(txCtx, auction.ID)
		if err != nil {
			return err
		}

		outcome = &CloseOutcome{BidNumber: auction.BidNumber, Outcome: models.AuctionOutcomeUnawarded}
		event := auctionEvent{auction: auction, eventType: models.AuctionEventClosedUnawarded}

		if winner != nil {
			award := &models.AuctionAward{
				AuctionID:         auction.ID,
				BidNumber:         auction.BidNumber,
				BidID:             winner.ID,
				WinnerCarrierID:   winner.CarrierID,
				WinnerAmountCents: winner.AmountCents,
				AwardedBy:         models.AwardedByEngine,
				AwardedAt:         now,
				CreatedAt:         now,
			}
			if err := f.awardRepo.Create(txCtx, award); err != nil {
				return err
			}
			outcome.Outcome = models.AuctionOutcomeAwarded
			outcome.Award = award
			event = auctionEvent{
				auction:     auction,
				eventType:   models.AuctionEventAwarded,
				carrierID:   &award.WinnerCarrierID,
				amountCents: &award.WinnerAmountCents,
				extra:       map[string]any{"bid_id": award.BidID},
			}
		}

		if err := f.auctionRepo.MarkClosed(txCtx, auction.ID, token, outcome.Outcome, now); err != nil {
			return err
		}
		return recordEvent(txCtx, f.eventRepo, event, nil, now)
	})
	return outcome, err
}

// decideError keeps the outcome sentinels matchable and marks everything else retryable
func decideError(err error) error {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return NewBusinessError("AUCTION_NOT_FOUND", "Auction not found", err)
	case errors.Is(err, ErrDuplicateAward):
		return NewBusinessError("DUPLICATE_AWARD", "Auction already has an award", err)
	case errors.Is(err, ErrStaleClaim):
		return NewBusinessError("CLAIM_EXPIRED", "Close claim expired before the award was written", err)
	}
	return storageError("CLOSE_AUCTION_FAILED", "Failed to close auction", err)
}

// abandonClaim hands the auction back and schedules a retry
func (f *AwardFlowImpl) abandonClaim(ctx context.Context, auction *models.Auction, token string, cause error, log logrus.FieldLogger) {
	now := f.clock.Now().UTC()
	delay := f.recordFailure(auction.ID, now)

	switch {
	case errors.Is(cause, ErrDuplicateAward):
		engineFailures.WithLabelValues("duplicate_award").Inc()
		log.WithField("error", cause.Error()).Error("award already exists for an auction being closed; refusing to overwrite")
	case errors.Is(cause, ErrStaleClaim):
		engineFailures.WithLabelValues("stale_claim").Inc()
		log.Warn("claim went stale before the award was written")
		return
	default:
		engineFailures.WithLabelValues("decide").Inc()
		log.WithFields(logrus.Fields{
			"error":       cause.Error(),
			"retry_after": delay.String(),
		}).Warn("failed to close auction, releasing claim")
	}

	releaseCtx := context.WithoutCancel(ctx)
	released, err := f.auctionRepo.ReleaseClaim(releaseCtx, auction.ID, token, now)
	if err != nil {
		// the claim will go stale and be picked up again
		log.WithField("error", err.Error()).Warn("failed to release auction claim")
		return
	}
	if released {
		_ = recordEvent(releaseCtx, f.eventRepo, auctionEvent{
			auction:   auction,
			eventType: models.AuctionEventClaimReleased,
			extra:     map[string]any{"reason": cause.Error()},
		}, nil, now)
	}
}

// backedOff lists auctions still waiting out a retry delay
func (f *AwardFlowImpl) backedOff(now time.Time) []uint {
	f.backoffMu.Lock()
	defer f.backoffMu.Unlock()
	var ids []uint
	for id, st := range f.backoff {
		if now.Before(st.until) {
			ids = append(ids, id)
		}
	}
	return ids
}

// recordFailure doubles the retry delay for the auction, capped at BackoffMax
func (f *AwardFlowImpl) recordFailure(auctionID uint, now time.Time) time.Duration {
	f.backoffMu.Lock()
	defer f.backoffMu.Unlock()

	st := f.backoff[auctionID]
	st.failures++
	delay := f.opts.BackoffBase
	for i := 1; i < st.failures && delay < f.opts.BackoffMax; i++ {
		delay *= 2
	}
	if delay > f.opts.BackoffMax {
		delay = f.opts.BackoffMax
	}
	st.until = now.Add(delay)
	f.backoff[auctionID] = st
	return delay
}

func (f *AwardFlowImpl) clearFailures(auctionID uint) {
	f.backoffMu.Lock()
	defer f.backoffMu.Unlock()
	delete(f.backoff, auctionID)
}

// String helps when an outcome is logged as a single value
func (o *CloseOutcome) String() string {
	if o.Award == nil {
		return fmt.Sprintf("%s: %s", o.BidNumber, o.Outcome)
	}
	return fmt.Sprintf("%s: %s to %s at %s", o.BidNumber, o.Outcome, o.Award.WinnerCarrierID, utils.CentsToDollars(o.Award.WinnerAmountCents))
}
