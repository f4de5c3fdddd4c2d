package repository

import (
	"context"
	"errors"

	"github.com/amirphl/freight-bidding/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArchivedAuctionRepositoryImpl implements ArchivedAuctionRepository
type ArchivedAuctionRepositoryImpl struct {
	*BaseRepository[models.ArchivedAuction, models.ArchivedAuctionFilter]
}

// NewArchivedAuctionRepository creates a new archive repository
func NewArchivedAuctionRepository(db *gorm.DB) ArchivedAuctionRepository {
	return &ArchivedAuctionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ArchivedAuction, models.ArchivedAuctionFilter](db),
	}
}

func (r *ArchivedAuctionRepositoryImpl) applyFilter(db *gorm.DB, f models.ArchivedAuctionFilter) *gorm.DB {
	if f.BidNumber != nil {
		db = db.Where("bid_number = ?", *f.BidNumber)
	}
	if f.BidNumberLike != nil && *f.BidNumberLike != "" {
		db = db.Where(`bid_number LIKE ? ESCAPE '\'`, containsPattern(*f.BidNumberLike))
	}
	if f.StateTag != nil && *f.StateTag != "" {
		db = db.Where("state_tag = UPPER(?)", *f.StateTag)
	}
	if f.City != nil && *f.City != "" {
		db = db.Where(`LOWER(stops) LIKE LOWER(?) ESCAPE '\'`, containsPattern(*f.City))
	}
	if f.SourceChannel != nil && *f.SourceChannel != "" {
		db = db.Where("source_channel = ?", *f.SourceChannel)
	}
	if f.Outcome != nil {
		db = db.Where("outcome = ?", *f.Outcome)
	}
	if f.WinnerCarrier != nil {
		db = db.Where("winner_carrier_id = ?", *f.WinnerCarrier)
	}
	if f.ReceivedFrom != nil {
		db = db.Where("received_at >= ?", *f.ReceivedFrom)
	}
	if f.ReceivedTo != nil {
		db = db.Where("received_at < ?", *f.ReceivedTo)
	}
	if f.MinDistance != nil {
		db = db.Where("distance_miles >= ?", *f.MinDistance)
	}
	if f.MaxDistance != nil {
		db = db.Where("distance_miles <= ?", *f.MaxDistance)
	}
	if f.ArchivedAfter != nil {
		db = db.Where("archived_at >= ?", *f.ArchivedAfter)
	}
	if f.ArchivedBefore != nil {
		db = db.Where("archived_at < ?", *f.ArchivedBefore)
	}
	return db
}

func (r *ArchivedAuctionRepositoryImpl) ByFilter(ctx context.Context, filter models.ArchivedAuctionFilter, orderBy string, limit, offset int) ([]*models.ArchivedAuction, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.ArchivedAuction{}), filter), orderBy, limit, offset)
	var rows []*models.ArchivedAuction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ArchivedAuctionRepositoryImpl) Count(ctx context.Context, filter models.ArchivedAuctionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ArchivedAuction{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ArchivedAuctionRepositoryImpl) Exists(ctx context.Context, filter models.ArchivedAuctionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Upsert writes the archive record keyed by bid number, replacing the snapshot of a
// previous partial run. The stored row is loaded back into record.
func (r *ArchivedAuctionRepositoryImpl) Upsert(ctx context.Context, record *models.ArchivedAuction) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bid_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"auction_id", "distance_miles", "pickup_at", "delivery_at", "stops", "tag",
			"state_tag", "source_channel", "received_at", "window_closes_at", "closed_at",
			"outcome", "winner_carrier_id", "winner_amount_cents", "bid_count",
			"total_bid_count", "lowest_amount_cents", "highest_amount_cents",
			"average_amount_cents", "hours_active", "bids", "archived_at", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return err
	}

	var stored models.ArchivedAuction
	if err = db.Where("bid_number = ?", record.BidNumber).First(&stored).Error; err != nil {
		return err
	}
	*record = stored
	return nil
}

func (r *ArchivedAuctionRepositoryImpl) ByBidNumber(ctx context.Context, bidNumber string) (*models.ArchivedAuction, error) {
	db := r.getDB(ctx)
	var row models.ArchivedAuction
	if err := db.Where("bid_number = ?", bidNumber).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Statistics counts live and archived auctions and the archive time span
func (r *ArchivedAuctionRepositoryImpl) Statistics(ctx context.Context) (*ArchiveStatistics, error) {
	db := r.getDB(ctx)
	stats := &ArchiveStatistics{}

	if err := db.Model(&models.Auction{}).Count(&stats.TotalAuctions).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Auction{}).Where("archived_at IS NOT NULL").Count(&stats.ArchivedAuctions).Error; err != nil {
		return nil, err
	}
	stats.ActiveAuctions = stats.TotalAuctions - stats.ArchivedAuctions

	if err := db.Model(&models.ArchivedAuction{}).
		Select("COUNT(DISTINCT DATE(archived_at))").
		Scan(&stats.ArchiveDays).Error; err != nil {
		return nil, err
	}

	var earliest, latest models.ArchivedAuction
	if err := db.Order("archived_at ASC, id ASC").Limit(1).Find(&earliest).Error; err != nil {
		return nil, err
	}
	if earliest.ID != 0 {
		stats.EarliestArchive = &earliest.ArchivedAt
	}
	if err := db.Order("archived_at DESC, id DESC").Limit(1).Find(&latest).Error; err != nil {
		return nil, err
	}
	if latest.ID != 0 {
		stats.LatestArchive = &latest.ArchivedAt
	}
	return stats, nil
}

// Integrity cross-checks auctions and archive records
func (r *ArchivedAuctionRepositoryImpl) Integrity(ctx context.Context) (*ArchiveIntegrity, error) {
	db := r.getDB(ctx)
	out := &ArchiveIntegrity{}

	err := db.Model(&models.Auction{}).
		Where("archived_at IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM archived_auctions aa WHERE aa.bid_number = auctions.bid_number)").
		Count(&out.MissingArchiveRecords).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.ArchivedAuction{}).
		Where("NOT EXISTS (SELECT 1 FROM auctions a WHERE a.bid_number = archived_auctions.bid_number AND a.archived_at IS NOT NULL)").
		Count(&out.UnmarkedArchived).Error
	if err != nil {
		return nil, err
	}

	err = db.Raw("SELECT COUNT(*) FROM (SELECT bid_number FROM archived_auctions GROUP BY bid_number HAVING COUNT(*) > 1) dup").
		Scan(&out.DuplicateBidNumbers).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
