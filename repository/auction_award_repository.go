package repository

import (
	"context"
	"errors"

	"github.com/amirphl/freight-bidding/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuctionAwardRepositoryImpl implements AuctionAwardRepository
type AuctionAwardRepositoryImpl struct {
	*BaseRepository[models.AuctionAward, models.AuctionAwardFilter]
}

// NewAuctionAwardRepository creates a new award repository
func NewAuctionAwardRepository(db *gorm.DB) AuctionAwardRepository {
	return &AuctionAwardRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuctionAward, models.AuctionAwardFilter](db),
	}
}

func (r *AuctionAwardRepositoryImpl) applyFilter(db *gorm.DB, f models.AuctionAwardFilter) *gorm.DB {
	if f.AuctionID != nil {
		db = db.Where("auction_id = ?", *f.AuctionID)
	}
	if f.BidNumber != nil {
		db = db.Where("bid_number = ?", *f.BidNumber)
	}
	if f.WinnerCarrierID != nil {
		db = db.Where("winner_carrier_id = ?", *f.WinnerCarrierID)
	}
	if f.AwardedAfter != nil {
		db = db.Where("awarded_at >= ?", *f.AwardedAfter)
	}
	if f.AwardedBefore != nil {
		db = db.Where("awarded_at < ?", *f.AwardedBefore)
	}
	return db
}

func (r *AuctionAwardRepositoryImpl) ByFilter(ctx context.Context, filter models.AuctionAwardFilter, orderBy string, limit, offset int) ([]*models.AuctionAward, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.AuctionAward{}), filter), orderBy, limit, offset)
	var rows []*models.AuctionAward
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AuctionAwardRepositoryImpl) Count(ctx context.Context, filter models.AuctionAwardFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AuctionAward{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AuctionAwardRepositoryImpl) Exists(ctx context.Context, filter models.AuctionAwardFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Create inserts the award only if none exists for the auction. A second attempt
// never overwrites the first and reports ErrDuplicateAward.
func (r *AuctionAwardRepositoryImpl) Create(ctx context.Context, award *models.AuctionAward) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(award)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateAward
	}
	return nil
}

func (r *AuctionAwardRepositoryImpl) ByAuctionID(ctx context.Context, auctionID uint) (*models.AuctionAward, error) {
	db := r.getDB(ctx)
	var row models.AuctionAward
	if err := db.Where("auction_id = ?", auctionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *AuctionAwardRepositoryImpl) ByBidNumber(ctx context.Context, bidNumber string) (*models.AuctionAward, error) {
	db := r.getDB(ctx)
	var row models.AuctionAward
	if err := db.Where("bid_number = ?", bidNumber).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *AuctionAwardRepositoryImpl) CountByAuctionID(ctx context.Context, auctionID uint) (int64, error) {
	return r.Count(ctx, models.AuctionAwardFilter{AuctionID: &auctionID})
}
