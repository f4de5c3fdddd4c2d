package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuctionIngestFlow receives load postings from the ingestion collaborator
type AuctionIngestFlow interface {
	CreateAuction(ctx context.Context, req *dto.CreateAuctionRequest, metadata *ClientMetadata) (*dto.CreateAuctionResponse, error)
}

// AuctionIngestFlowImpl implements AuctionIngestFlow
type AuctionIngestFlowImpl struct {
	auctionRepo repository.AuctionRepository
	eventRepo   repository.AuctionEventRepository
	db          *gorm.DB
	clock       utils.Clock
	logger      logrus.FieldLogger
}

func NewAuctionIngestFlow(
	auctionRepo repository.AuctionRepository,
	eventRepo repository.AuctionEventRepository,
	db *gorm.DB,
	clock utils.Clock,
	logger logrus.FieldLogger,
) AuctionIngestFlow {
	return &AuctionIngestFlowImpl{
		auctionRepo: auctionRepo,
		eventRepo:   eventRepo,
		db:          db,
		clock:       clock,
		logger:      logger,
	}
}

// CreateAuction stores a new auction. Posting the same bid number again returns
// the stored auction with Created=false and changes nothing.
func (f *AuctionIngestFlowImpl) CreateAuction(ctx context.Context, req *dto.CreateAuctionRequest, metadata *ClientMetadata) (*dto.CreateAuctionResponse, error) {
	auction, err := f.buildAuction(req)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now().UTC()
	auction.CreatedAt = now
	auction.UpdatedAt = now

	var created bool
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		created, err = f.auctionRepo.CreateIfAbsent(txCtx, auction)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return recordEvent(txCtx, f.eventRepo, auctionEvent{
			auction:   auction,
			eventType: models.AuctionEventCreated,
			extra: map[string]any{
				"window_closes_at": auction.WindowClosesAt,
			},
		}, metadata, now)
	})
	if err != nil {
		return nil, storageError("CREATE_AUCTION_FAILED", "Failed to create auction", err)
	}

	if created {
		f.logger.WithFields(logrus.Fields{
			"bid_number":       auction.BidNumber,
			"window_closes_at": auction.WindowClosesAt,
		}).Info("auction created")
	}

	return &dto.CreateAuctionResponse{
		Created: created,
		Auction: ToAuctionDTO(auction, now),
	}, nil
}

func (f *AuctionIngestFlowImpl) buildAuction(req *dto.CreateAuctionRequest) (*models.Auction, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_AUCTION", "Request body is required", ErrInvalidAuction)
	}
	bidNumber := strings.TrimSpace(req.BidNumber)
	if bidNumber == "" {
		return nil, NewBusinessError("INVALID_AUCTION", "Bid number is required", ErrInvalidAuction)
	}
	if req.DistanceMiles != nil && *req.DistanceMiles < 0 {
		return nil, NewBusinessError("INVALID_AUCTION", "Distance must not be negative", ErrInvalidAuction)
	}
	if req.PickupAt != nil && req.DeliveryAt != nil && req.DeliveryAt.Before(*req.PickupAt) {
		return nil, NewBusinessError("INVALID_AUCTION", "Delivery must not precede pickup", ErrInvalidAuction)
	}

	receivedAt := f.clock.Now().UTC()
	if req.ReceivedAt != nil && !req.ReceivedAt.IsZero() {
		receivedAt = req.ReceivedAt.UTC()
	}

	stops := make(models.StopList, 0, len(req.Stops))
	for _, s := range req.Stops {
		if s = strings.TrimSpace(s); s != "" {
			stops = append(stops, s)
		}
	}

	var tag *string
	if req.Tag != nil {
		if t := strings.ToUpper(strings.TrimSpace(*req.Tag)); t != "" {
			tag = &t
		}
	}

	var source *string
	if req.SourceChannel != nil {
		if s := strings.TrimSpace(*req.SourceChannel); s != "" {
			source = &s
		}
	}

	return &models.Auction{
		BidNumber:     bidNumber,
		DistanceMiles: req.DistanceMiles,
		PickupAt:      utils.TimeToUTCPtr(req.PickupAt),
		DeliveryAt:    utils.TimeToUTCPtr(req.DeliveryAt),
		Stops:         stops,
		Tag:           tag,
		SourceChannel: source,
		ReceivedAt:    receivedAt,
		Status:        models.AuctionStatusOpen,
	}, nil
}
