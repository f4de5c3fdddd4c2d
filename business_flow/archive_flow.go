package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/app/services"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// errArchiveRace means another archiver marked the auction between our read and write
var errArchiveRace = errors.New("auction archived concurrently")

const maxExportRows = 10000

// ArchiveOptions tunes the archive pipeline
type ArchiveOptions struct {
	BatchSize int
}

// ArchiveResult summarizes one archive pass
type ArchiveResult struct {
	Archived int
	Skipped  int
	Failed   int
	Errors   []string
}

// ArchiveFlow moves closed auctions into the archive store and reports on it
type ArchiveFlow interface {
	ArchiveClosedAuctions(ctx context.Context, olderThan time.Duration) (*ArchiveResult, error)
	ArchiveStatistics(ctx context.Context) (*dto.ArchiveStatisticsResponse, error)
	VerifyArchiveIntegrity(ctx context.Context) (*dto.ArchiveIntegrityResponse, error)
	ExportArchiveXLSX(ctx context.Context, req *dto.ListArchiveRequest) (string, []byte, error)
}

// ArchiveFlowImpl implements ArchiveFlow
type ArchiveFlowImpl struct {
	auctionRepo repository.AuctionRepository
	bidRepo     repository.CarrierBidRepository
	awardRepo   repository.AuctionAwardRepository
	archiveRepo repository.ArchivedAuctionRepository
	eventRepo   repository.AuctionEventRepository
	mirror      services.ArchiveMirror
	notifier    services.AuctionNotifier
	db          *gorm.DB
	clock       utils.Clock
	logger      logrus.FieldLogger
	opts        ArchiveOptions
}

func NewArchiveFlow(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.CarrierBidRepository,
	awardRepo repository.AuctionAwardRepository,
	archiveRepo repository.ArchivedAuctionRepository,
	eventRepo repository.AuctionEventRepository,
	mirror services.ArchiveMirror,
	notifier services.AuctionNotifier,
	db *gorm.DB,
	clock utils.Clock,
	logger logrus.FieldLogger,
	opts ArchiveOptions,
) ArchiveFlow {
	if mirror == nil {
		mirror = services.NoopArchiveMirror{}
	}
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	return &ArchiveFlowImpl{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		awardRepo:   awardRepo,
		archiveRepo: archiveRepo,
		eventRepo:   eventRepo,
		mirror:      mirror,
		notifier:    notifier,
		db:          db,
		clock:       clock,
		logger:      logger,
		opts:        opts,
	}
}

// ArchiveClosedAuctions archives closed auctions whose close is at least olderThan
// in the past. Each auction is handled in its own transaction, so one failure does
// not hold back the rest. Running it again, or alongside another archiver, is a no-op
// for auctions that are already archived.
func (f *ArchiveFlowImpl) ArchiveClosedAuctions(ctx context.Context, olderThan time.Duration) (*ArchiveResult, error) {
	if olderThan < 0 {
		olderThan = 0
	}
	now := f.clock.Now().UTC()
	candidates, err := f.auctionRepo.ListClosedForArchive(ctx, now.Add(-olderThan), f.opts.BatchSize)
	if err != nil {
		return nil, storageError("LIST_ARCHIVE_CANDIDATES_FAILED", "Failed to list auctions to archive", err)
	}

	result := &ArchiveResult{Errors: []string{}}
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		record, err := f.archiveOne(ctx, candidate.ID)
		switch {
		case err == nil && record == nil:
			result.Skipped++
			archiveResults.WithLabelValues("skipped").Inc()
		case errors.Is(err, errArchiveRace):
			result.Skipped++
			archiveResults.WithLabelValues("skipped").Inc()
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", candidate.BidNumber, err))
			archiveResults.WithLabelValues("failed").Inc()
			f.logger.WithFields(logrus.Fields{
				"bid_number": candidate.BidNumber,
				"error":      err.Error(),
			}).Error("failed to archive auction")
		default:
			result.Archived++
			archiveResults.WithLabelValues("archived").Inc()
			f.afterArchive(ctx, record)
		}
	}

	if len(candidates) > 0 {
		f.logger.WithFields(logrus.Fields{
			"archived": result.Archived,
			"skipped":  result.Skipped,
			"failed":   result.Failed,
		}).Info("archive pass finished")
	}
	return result, nil
}

// archiveOne returns nil, nil when the auction no longer needs archiving
func (f *ArchiveFlowImpl) archiveOne(ctx context.Context, auctionID uint) (*models.ArchivedAuction, error) {
	var record *models.ArchivedAuction
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		now := f.clock.Now().UTC()

		auction, err := f.auctionRepo.ByIDLocked(txCtx, auctionID, repository.LockForUpdate)
		if err != nil {
			return err
		}
		if auction == nil || auction.IsArchived() || !auction.IsClosed() {
			return nil
		}

		bids, err := f.bidRepo.ListByAuction(txCtx, auction.ID)
		if err != nil {
			return err
		}
		award, err := f.awardRepo.ByAuctionID(txCtx, auction.ID)
		if err != nil {
			return err
		}

		rec := BuildArchiveRecord(auction, bids, award, now)
		if err := f.archiveRepo.Upsert(txCtx, rec); err != nil {
			return err
		}

		marked, err := f.auctionRepo.MarkArchived(txCtx, auction.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return errArchiveRace
		}

		if err := recordEvent(txCtx, f.eventRepo, auctionEvent{
			auction:   auction,
			eventType: models.AuctionEventArchived,
			extra: map[string]any{
				"bid_count":       rec.BidCount,
				"total_bid_count": rec.TotalBidCount,
			},
		}, nil, now); err != nil {
			return err
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// afterArchive runs outside the transaction; mirror and notifier failures never undo the archive
func (f *ArchiveFlowImpl) afterArchive(ctx context.Context, record *models.ArchivedAuction) {
	if err := f.mirror.PutArchive(ctx, record); err != nil {
		archiveMirrorFailures.Inc()
		f.logger.WithFields(logrus.Fields{
			"bid_number": record.BidNumber,
			"error":      err.Error(),
		}).Warn("failed to mirror archive record")
	}
	f.notifier.Notify(ctx, services.AuctionNotification{
		Type:       services.NotificationAuctionArchived,
		BidNumber:  record.BidNumber,
		OccurredAt: record.ArchivedAt,
	})
}

// BuildArchiveRecord denormalizes an auction, its full bid history and its award.
// Amount statistics cover eligible bids only; TotalBidCount counts every row.
func BuildArchiveRecord(auction *models.Auction, bids []*models.CarrierBid, award *models.AuctionAward, archivedAt time.Time) *models.ArchivedAuction {
	rec := &models.ArchivedAuction{
		BidNumber:      auction.BidNumber,
		AuctionID:      auction.ID,
		DistanceMiles:  auction.DistanceMiles,
		PickupAt:       auction.PickupAt,
		DeliveryAt:     auction.DeliveryAt,
		Stops:          auction.Stops,
		Tag:            auction.Tag,
		StateTag:       auction.StateTag(),
		SourceChannel:  auction.SourceChannel,
		ReceivedAt:     auction.ReceivedAt,
		WindowClosesAt: auction.WindowClosesAt,
		ClosedAt:       utils.Deref(auction.ClosedAt),
		Outcome:        models.AuctionOutcomeUnawarded,
		TotalBidCount:  len(bids),
		HoursActive:    hoursBetween(auction.ReceivedAt, archivedAt),
		Bids:           make(models.ArchivedBidList, 0, len(bids)),
		ArchivedAt:     archivedAt,
		CreatedAt:      archivedAt,
		UpdatedAt:      archivedAt,
	}
	if auction.Outcome != nil {
		rec.Outcome = *auction.Outcome
	}
	if award != nil {
		rec.Outcome = models.AuctionOutcomeAwarded
		rec.WinnerCarrierID = utils.ToPtr(award.WinnerCarrierID)
		rec.WinnerAmountCents = utils.ToPtr(award.WinnerAmountCents)
	}

	var sum int64
	for _, b := range bids {
		rec.Bids = append(rec.Bids, models.ArchivedBid{
			ID:                 b.ID,
			CarrierID:          b.CarrierID,
			AmountCents:        b.AmountCents,
			CounterAmountCents: b.CounterAmountCents,
			Status:             b.Status,
			Notes:              b.Notes,
			SubmittedAt:        b.SubmittedAt,
			WithdrawnAt:        b.WithdrawnAt,
			CreatedAt:          b.CreatedAt,
		})
		if !b.IsEligible() {
			continue
		}
		rec.BidCount++
		sum += b.AmountCents
		if rec.LowestAmountCents == nil || b.AmountCents < *rec.LowestAmountCents {
			rec.LowestAmountCents = utils.ToPtr(b.AmountCents)
		}
		if rec.HighestAmountCents == nil || b.AmountCents > *rec.HighestAmountCents {
			rec.HighestAmountCents = utils.ToPtr(b.AmountCents)
		}
	}
	if rec.BidCount > 0 {
		rec.AverageAmountCents = utils.ToPtr(utils.AverageCents(sum, int64(rec.BidCount)))
	}
	return rec
}

// hoursBetween returns elapsed hours rounded to two decimals
func hoursBetween(from, to time.Time) float64 {
	if to.Before(from) {
		return 0
	}
	secs := decimal.NewFromInt(int64(to.Sub(from) / time.Second))
	return secs.Div(decimal.NewFromInt(3600)).Round(2).InexactFloat64()
}

func (f *ArchiveFlowImpl) ArchiveStatistics(ctx context.Context) (*dto.ArchiveStatisticsResponse, error) {
	stats, err := f.archiveRepo.Statistics(ctx)
	if err != nil {
		return nil, storageError("ARCHIVE_STATISTICS_FAILED", "Failed to compute archive statistics", err)
	}
	return &dto.ArchiveStatisticsResponse{
		TotalAuctions:    stats.TotalAuctions,
		ArchivedAuctions: stats.ArchivedAuctions,
		ActiveAuctions:   stats.ActiveAuctions,
		ArchiveDays:      stats.ArchiveDays,
		EarliestArchive:  utils.FormatRFC3339Ptr(stats.EarliestArchive),
		LatestArchive:    utils.FormatRFC3339Ptr(stats.LatestArchive),
	}, nil
}

func (f *ArchiveFlowImpl) VerifyArchiveIntegrity(ctx context.Context) (*dto.ArchiveIntegrityResponse, error) {
	report, err := f.archiveRepo.Integrity(ctx)
	if err != nil {
		return nil, storageError("ARCHIVE_INTEGRITY_FAILED", "Failed to verify archive integrity", err)
	}

	issues := []string{}
	if report.MissingArchiveRecords > 0 {
		issues = append(issues, fmt.Sprintf("%d archived auctions have no archive record", report.MissingArchiveRecords))
	}
	if report.UnmarkedArchived > 0 {
		issues = append(issues, fmt.Sprintf("%d archive records belong to auctions not marked archived", report.UnmarkedArchived))
	}
	if report.DuplicateBidNumbers > 0 {
		issues = append(issues, fmt.Sprintf("%d bid numbers have more than one archive record", report.DuplicateBidNumbers))
	}
	if len(issues) > 0 {
		f.logger.WithField("issues", issues).Warn("archive integrity check found problems")
	}
	return &dto.ArchiveIntegrityResponse{IsValid: len(issues) == 0, Issues: issues}, nil
}

// ExportArchiveXLSX renders the archive records matching req as a workbook with one
// summary sheet and one sheet listing every archived bid
func (f *ArchiveFlowImpl) ExportArchiveXLSX(ctx context.Context, req *dto.ListArchiveRequest) (string, []byte, error) {
	filter, err := archiveFilterFrom(req)
	if err != nil {
		return "", nil, err
	}

	records, err := f.archiveRepo.ByFilter(ctx, filter, "archived_at DESC, id DESC", maxExportRows, 0)
	if err != nil {
		return "", nil, storageError("FETCH_ARCHIVE_FAILED", "Failed to fetch archive records", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summarySheet, bidsSheet = "auctions", "bids"
	xl.SetSheetName(xl.GetSheetName(0), summarySheet)
	if _, err := xl.NewSheet(bidsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create Excel sheet", err)
	}

	header := []string{"bid_number", "state_tag", "distance_miles", "stops", "received_at", "closed_at", "archived_at",
		"hours_active", "outcome", "winner_carrier_id", "winner_amount", "bid_count", "total_bid_count",
		"lowest_amount", "highest_amount", "average_amount"}
	_ = xl.SetSheetRow(summarySheet, "A1", &header)

	bidHeader := []string{"bid_number", "carrier_id", "amount", "status", "submitted_at", "withdrawn_at", "notes"}
	_ = xl.SetSheetRow(bidsSheet, "A1", &bidHeader)

	bidRow := 2
	for i, r := range records {
		row := []string{
			r.BidNumber,
			r.StateTag,
			optionalInt(r.DistanceMiles),
			strconv.Itoa(len(r.Stops)),
			r.ReceivedAt.UTC().Format(time.RFC3339),
			r.ClosedAt.UTC().Format(time.RFC3339),
			r.ArchivedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.HoursActive, 'f', 2, 64),
			r.Outcome.String(),
			utils.Deref(r.WinnerCarrierID),
			optionalDollars(r.WinnerAmountCents),
			strconv.Itoa(r.BidCount),
			strconv.Itoa(r.TotalBidCount),
			optionalDollars(r.LowestAmountCents),
			optionalDollars(r.HighestAmountCents),
			optionalDollars(r.AverageAmountCents),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)

		for _, b := range r.Bids {
			withdrawn := ""
			if b.WithdrawnAt != nil {
				withdrawn = b.WithdrawnAt.UTC().Format(time.RFC3339)
			}
			line := []string{
				r.BidNumber,
				b.CarrierID,
				utils.CentsToDollars(b.AmountCents),
				b.Status.String(),
				b.SubmittedAt.UTC().Format(time.RFC3339),
				withdrawn,
				utils.Deref(b.Notes),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, bidRow)
			_ = xl.SetSheetRow(bidsSheet, cellRef, &line)
			bidRow++
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("archive_%s.xlsx", f.clock.Now().UTC().Format("20060102T150405Z"))
	return filename, buf.Bytes(), nil
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalDollars(v *int64) string {
	if v == nil {
		return ""
	}
	return utils.CentsToDollars(*v)
}
