package repository

import (
	"context"

	"github.com/amirphl/freight-bidding/models"
	"gorm.io/gorm"
)

// AuctionEventRepositoryImpl implements AuctionEventRepository
type AuctionEventRepositoryImpl struct {
	*BaseRepository[models.AuctionEvent, models.AuctionEventFilter]
}

// NewAuctionEventRepository creates a new auction event repository
func NewAuctionEventRepository(db *gorm.DB) AuctionEventRepository {
	return &AuctionEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuctionEvent, models.AuctionEventFilter](db),
	}
}

func (r *AuctionEventRepositoryImpl) applyFilter(db *gorm.DB, f models.AuctionEventFilter) *gorm.DB {
	if f.AuctionID != nil {
		db = db.Where("auction_id = ?", *f.AuctionID)
	}
	if f.BidNumber != nil {
		db = db.Where("bid_number = ?", *f.BidNumber)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	if f.CarrierID != nil {
		db = db.Where("carrier_id = ?", *f.CarrierID)
	}
	return db
}

func (r *AuctionEventRepositoryImpl) ByFilter(ctx context.Context, filter models.AuctionEventFilter, orderBy string, limit, offset int) ([]*models.AuctionEvent, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.AuctionEvent{}), filter), orderBy, limit, offset)
	var rows []*models.AuctionEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AuctionEventRepositoryImpl) Count(ctx context.Context, filter models.AuctionEventFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AuctionEvent{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AuctionEventRepositoryImpl) Exists(ctx context.Context, filter models.AuctionEventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *AuctionEventRepositoryImpl) ListByAuction(ctx context.Context, auctionID uint, limit, offset int) ([]*models.AuctionEvent, error) {
	return r.ByFilter(ctx, models.AuctionEventFilter{AuctionID: &auctionID}, "created_at ASC, id ASC", limit, offset)
}
