package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
)

// AuctionQueryFlow is the read-only reporting surface over live and archived auctions
type AuctionQueryFlow interface {
	ListOpenAuctions(ctx context.Context, req *dto.ListOpenAuctionsRequest) (*dto.ListOpenAuctionsResponse, error)
	GetBidSummary(ctx context.Context, bidNumber, viewerCarrierID string) (*dto.BidSummaryResponse, error)
	ListMyBids(ctx context.Context, carrierID string, page, pageSize int) (*dto.ListMyBidsResponse, error)
	ListMyAwards(ctx context.Context, carrierID string, page, pageSize int) (*dto.ListMyAwardsResponse, error)
	ListArchive(ctx context.Context, req *dto.ListArchiveRequest) (*dto.ListArchiveResponse, error)
	GetArchiveRecord(ctx context.Context, bidNumber string) (*dto.ArchivedAuctionDTO, error)
	ListAuctionEvents(ctx context.Context, bidNumber string, page, pageSize int) (*dto.ListAuctionEventsResponse, error)
}

// AuctionQueryFlowImpl implements AuctionQueryFlow
type AuctionQueryFlowImpl struct {
	auctionRepo repository.AuctionRepository
	bidRepo     repository.CarrierBidRepository
	awardRepo   repository.AuctionAwardRepository
	archiveRepo repository.ArchivedAuctionRepository
	eventRepo   repository.AuctionEventRepository
	clock       utils.Clock
}

func NewAuctionQueryFlow(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.CarrierBidRepository,
	awardRepo repository.AuctionAwardRepository,
	archiveRepo repository.ArchivedAuctionRepository,
	eventRepo repository.AuctionEventRepository,
	clock utils.Clock,
) AuctionQueryFlow {
	return &AuctionQueryFlowImpl{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		awardRepo:   awardRepo,
		archiveRepo: archiveRepo,
		eventRepo:   eventRepo,
		clock:       clock,
	}
}

// ListOpenAuctions returns auctions accepting bids right now, soonest closing first
func (f *AuctionQueryFlowImpl) ListOpenAuctions(ctx context.Context, req *dto.ListOpenAuctionsRequest) (*dto.ListOpenAuctionsResponse, error) {
	if req == nil {
		req = &dto.ListOpenAuctionsRequest{}
	}
	page, pageSize, offset := utils.NormalizePage(req.Page, req.PageSize)

	filter := models.AuctionFilter{}
	if q := strings.TrimSpace(req.Q); q != "" {
		filter.BidNumberLike = &q
	}
	if tag := strings.TrimSpace(req.Tag); tag != "" {
		filter.Tag = &tag
	}

	now := f.clock.Now().UTC()
	total, err := f.auctionRepo.CountOpen(ctx, now, filter)
	if err != nil {
		return nil, storageError("LIST_OPEN_AUCTIONS_FAILED", "Failed to count open auctions", err)
	}
	rows, err := f.auctionRepo.ListOpen(ctx, now, filter, pageSize, offset)
	if err != nil {
		return nil, storageError("LIST_OPEN_AUCTIONS_FAILED", "Failed to list open auctions", err)
	}

	ids := make([]uint, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.ID)
	}
	aggs, err := f.bidRepo.AggregateByAuctionIDs(ctx, ids)
	if err != nil {
		return nil, storageError("LIST_OPEN_AUCTIONS_FAILED", "Failed to aggregate bids", err)
	}

	items := make([]dto.AuctionDTO, 0, len(rows))
	for _, a := range rows {
		items = append(items, withAggregate(ToAuctionDTO(a, now), aggs[a.ID]))
	}

	return &dto.ListOpenAuctionsResponse{
		Auctions:   items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

// GetBidSummary returns every bid of an auction with statistics over eligible bids.
// viewerCarrierID, when set, selects the caller's own bid.
func (f *AuctionQueryFlowImpl) GetBidSummary(ctx context.Context, bidNumber, viewerCarrierID string) (*dto.BidSummaryResponse, error) {
	auction, err := f.auctionRepo.ByBidNumber(ctx, strings.TrimSpace(bidNumber))
	if err != nil {
		return nil, storageError("GET_BID_SUMMARY_FAILED", "Failed to load auction", err)
	}
	if auction == nil {
		return nil, NewBusinessError("AUCTION_NOT_FOUND", "Auction not found", ErrAuctionNotFound)
	}

	bids, err := f.bidRepo.ListByAuction(ctx, auction.ID)
	if err != nil {
		return nil, storageError("GET_BID_SUMMARY_FAILED", "Failed to load bids", err)
	}

	now := f.clock.Now().UTC()
	resp := &dto.BidSummaryResponse{
		Bids: make([]dto.BidDTO, 0, len(bids)),
	}

	var (
		stats dto.BidStatsDTO
		sum   int64
	)
	stats.TotalBidsCount = int64(len(bids))
	for _, b := range bids {
		view := ToBidDTO(b)
		resp.Bids = append(resp.Bids, view)
		if viewerCarrierID != "" && b.CarrierID == viewerCarrierID {
			own := view
			resp.UserBid = &own
		}
		if !b.IsEligible() {
			continue
		}
		stats.BidsCount++
		sum += b.AmountCents
		// bids arrive best offer first, so the first eligible one is the current leader
		if stats.LowestAmountCents == nil {
			stats.LowestAmountCents = utils.ToPtr(b.AmountCents)
			stats.LowestCarrierID = utils.ToPtr(b.CarrierID)
		}
		if stats.HighestAmountCents == nil || b.AmountCents > *stats.HighestAmountCents {
			stats.HighestAmountCents = utils.ToPtr(b.AmountCents)
		}
	}
	if stats.BidsCount > 0 {
		stats.AverageAmountCents = utils.ToPtr(utils.AverageCents(sum, stats.BidsCount))
	}
	resp.Stats = stats

	auctionView := ToAuctionDTO(auction, now)
	auctionView.BidsCount = stats.BidsCount
	auctionView.LowestAmountCents = stats.LowestAmountCents
	if stats.LowestAmountCents != nil {
		auctionView.LowestAmount = utils.ToPtr(utils.CentsToDollars(*stats.LowestAmountCents))
	}
	resp.Auction = auctionView

	if auction.IsClosed() {
		award, err := f.awardRepo.ByAuctionID(ctx, auction.ID)
		if err != nil {
			return nil, storageError("GET_BID_SUMMARY_FAILED", "Failed to load award", err)
		}
		if award != nil {
			view := ToAwardDTO(award)
			resp.Award = &view
		}
	}

	return resp, nil
}

func (f *AuctionQueryFlowImpl) ListMyBids(ctx context.Context, carrierID string, page, pageSize int) (*dto.ListMyBidsResponse, error) {
	if strings.TrimSpace(carrierID) == "" {
		return nil, NewBusinessError("INVALID_CARRIER", "Carrier identity is required", ErrInvalidCarrier)
	}
	page, pageSize, offset := utils.NormalizePage(page, pageSize)

	total, err := f.bidRepo.Count(ctx, models.CarrierBidFilter{CarrierID: &carrierID})
	if err != nil {
		return nil, storageError("LIST_MY_BIDS_FAILED", "Failed to count bids", err)
	}
	rows, err := f.bidRepo.ListByCarrier(ctx, carrierID, pageSize, offset)
	if err != nil {
		return nil, storageError("LIST_MY_BIDS_FAILED", "Failed to list bids", err)
	}

	items := make([]dto.BidDTO, 0, len(rows))
	for _, b := range rows {
		items = append(items, ToBidDTO(b))
	}
	return &dto.ListMyBidsResponse{
		Bids:       items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

func (f *AuctionQueryFlowImpl) ListMyAwards(ctx context.Context, carrierID string, page, pageSize int) (*dto.ListMyAwardsResponse, error) {
	if strings.TrimSpace(carrierID) == "" {
		return nil, NewBusinessError("INVALID_CARRIER", "Carrier identity is required", ErrInvalidCarrier)
	}
	page, pageSize, offset := utils.NormalizePage(page, pageSize)

	filter := models.AuctionAwardFilter{WinnerCarrierID: &carrierID}
	total, err := f.awardRepo.Count(ctx, filter)
	if err != nil {
		return nil, storageError("LIST_MY_AWARDS_FAILED", "Failed to count awards", err)
	}
	rows, err := f.awardRepo.ByFilter(ctx, filter, "awarded_at DESC, id DESC", pageSize, offset)
	if err != nil {
		return nil, storageError("LIST_MY_AWARDS_FAILED", "Failed to list awards", err)
	}

	items := make([]dto.AwardDTO, 0, len(rows))
	for _, a := range rows {
		items = append(items, ToAwardDTO(a))
	}
	return &dto.ListMyAwardsResponse{
		Awards:     items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

// ListArchive pages through archive records matching the filters, newest first
func (f *AuctionQueryFlowImpl) ListArchive(ctx context.Context, req *dto.ListArchiveRequest) (*dto.ListArchiveResponse, error) {
	filter, err := archiveFilterFrom(req)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &dto.ListArchiveRequest{}
	}
	page, pageSize, offset := utils.NormalizePage(req.Page, req.PageSize)

	total, err := f.archiveRepo.Count(ctx, filter)
	if err != nil {
		return nil, storageError("LIST_ARCHIVE_FAILED", "Failed to count archive records", err)
	}
	rows, err := f.archiveRepo.ByFilter(ctx, filter, "received_at DESC, id DESC", pageSize, offset)
	if err != nil {
		return nil, storageError("LIST_ARCHIVE_FAILED", "Failed to list archive records", err)
	}

	items := make([]dto.ArchivedAuctionDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToArchivedAuctionDTO(r, false))
	}
	return &dto.ListArchiveResponse{
		Records:    items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

func (f *AuctionQueryFlowImpl) GetArchiveRecord(ctx context.Context, bidNumber string) (*dto.ArchivedAuctionDTO, error) {
	record, err := f.archiveRepo.ByBidNumber(ctx, strings.TrimSpace(bidNumber))
	if err != nil {
		return nil, storageError("GET_ARCHIVE_RECORD_FAILED", "Failed to load archive record", err)
	}
	if record == nil {
		return nil, NewBusinessError("ARCHIVE_RECORD_NOT_FOUND", "Archive record not found", ErrArchiveRecordNotFound)
	}
	view := ToArchivedAuctionDTO(record, true)
	return &view, nil
}

func (f *AuctionQueryFlowImpl) ListAuctionEvents(ctx context.Context, bidNumber string, page, pageSize int) (*dto.ListAuctionEventsResponse, error) {
	auction, err := f.auctionRepo.ByBidNumber(ctx, strings.TrimSpace(bidNumber))
	if err != nil {
		return nil, storageError("LIST_AUCTION_EVENTS_FAILED", "Failed to load auction", err)
	}
	if auction == nil {
		return nil, NewBusinessError("AUCTION_NOT_FOUND", "Auction not found", ErrAuctionNotFound)
	}
	page, pageSize, offset := utils.NormalizePage(page, pageSize)

	total, err := f.eventRepo.Count(ctx, models.AuctionEventFilter{AuctionID: &auction.ID})
	if err != nil {
		return nil, storageError("LIST_AUCTION_EVENTS_FAILED", "Failed to count events", err)
	}
	rows, err := f.eventRepo.ListByAuction(ctx, auction.ID, pageSize, offset)
	if err != nil {
		return nil, storageError("LIST_AUCTION_EVENTS_FAILED", "Failed to list events", err)
	}

	items := make([]dto.AuctionEventDTO, 0, len(rows))
	for _, e := range rows {
		items = append(items, ToAuctionEventDTO(e))
	}
	return &dto.ListAuctionEventsResponse{
		BidNumber:  auction.BidNumber,
		Events:     items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

// archiveFilterFrom validates request filters. Date bounds apply to received_at; To is exclusive.
func archiveFilterFrom(req *dto.ListArchiveRequest) (models.ArchivedAuctionFilter, error) {
	var filter models.ArchivedAuctionFilter
	if req == nil {
		return filter, nil
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return filter, NewBusinessError("INVALID_ARCHIVE_FILTER", "'to' must not precede 'from'", ErrInvalidArchiveFilter)
	}
	if req.MinDistance != nil && req.MaxDistance != nil && *req.MaxDistance < *req.MinDistance {
		return filter, NewBusinessError("INVALID_ARCHIVE_FILTER", "max_distance must not be below min_distance", ErrInvalidArchiveFilter)
	}

	filter.ReceivedFrom = utils.TimeToUTCPtr(req.From)
	filter.ReceivedTo = utils.TimeToUTCPtr(req.To)
	filter.MinDistance = req.MinDistance
	filter.MaxDistance = req.MaxDistance
	if tag := strings.TrimSpace(req.Tag); tag != "" {
		filter.StateTag = &tag
	}
	if q := strings.TrimSpace(req.Q); q != "" {
		filter.BidNumberLike = &q
	}
	if city := strings.TrimSpace(req.City); city != "" {
		filter.City = &city
	}
	if ch := strings.TrimSpace(req.SourceChannel); ch != "" {
		filter.SourceChannel = &ch
	}
	if o := strings.TrimSpace(req.Outcome); o != "" {
		outcome := models.AuctionOutcome(strings.ToLower(o))
		if !outcome.Valid() {
			return filter, NewBusinessError("INVALID_ARCHIVE_FILTER", "Unknown outcome", ErrInvalidArchiveFilter)
		}
		filter.Outcome = &outcome
	}
	return filter, nil
}
