package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/freight-bidding/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuctionRepositoryImpl implements AuctionRepository
type AuctionRepositoryImpl struct {
	*BaseRepository[models.Auction, models.AuctionFilter]
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(db *gorm.DB) AuctionRepository {
	return &AuctionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Auction, models.AuctionFilter](db),
	}
}

func (r *AuctionRepositoryImpl) applyFilter(db *gorm.DB, f models.AuctionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.BidNumber != nil {
		db = db.Where("bid_number = ?", *f.BidNumber)
	}
	if f.BidNumberLike != nil && *f.BidNumberLike != "" {
		db = db.Where(`bid_number LIKE ? ESCAPE '\'`, containsPattern(*f.BidNumberLike))
	}
	if f.Tag != nil && *f.Tag != "" {
		db = db.Where("UPPER(tag) = UPPER(?)", *f.Tag)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Outcome != nil {
		db = db.Where("outcome = ?", *f.Outcome)
	}
	if f.Archived != nil {
		if *f.Archived {
			db = db.Where("archived_at IS NOT NULL")
		} else {
			db = db.Where("archived_at IS NULL")
		}
	}
	if f.ClosesAfter != nil {
		db = db.Where("window_closes_at > ?", *f.ClosesAfter)
	}
	if f.ReceivedAfter != nil {
		db = db.Where("received_at >= ?", *f.ReceivedAfter)
	}
	if f.ReceivedBefore != nil {
		db = db.Where("received_at < ?", *f.ReceivedBefore)
	}
	return db
}

func (r *AuctionRepositoryImpl) ByFilter(ctx context.Context, filter models.AuctionFilter, orderBy string, limit, offset int) ([]*models.Auction, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.Auction{}), filter), orderBy, limit, offset)
	var rows []*models.Auction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AuctionRepositoryImpl) Count(ctx context.Context, filter models.AuctionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Auction{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AuctionRepositoryImpl) Exists(ctx context.Context, filter models.AuctionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// ByBidNumber returns the auction or nil when it does not exist
func (r *AuctionRepositoryImpl) ByBidNumber(ctx context.Context, bidNumber string) (*models.Auction, error) {
	db := r.getDB(ctx)
	var row models.Auction
	if err := db.Where("bid_number = ?", bidNumber).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByBidNumberLocked reads the auction holding a row lock until the surrounding transaction ends
func (r *AuctionRepositoryImpl) ByBidNumberLocked(ctx context.Context, bidNumber string, strength string) (*models.Auction, error) {
	db := lockRow(r.getDB(ctx), strength)
	var row models.Auction
	if err := db.Where("bid_number = ?", bidNumber).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *AuctionRepositoryImpl) ByIDLocked(ctx context.Context, id uint, strength string) (*models.Auction, error) {
	db := lockRow(r.getDB(ctx), strength)
	var row models.Auction
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CreateIfAbsent inserts the auction unless its bid number exists. On conflict the
// existing row is loaded into auction and false is returned.
func (r *AuctionRepositoryImpl) CreateIfAbsent(ctx context.Context, auction *models.Auction) (created bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bid_number"}},
		DoNothing: true,
	}).Create(auction)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var existing models.Auction
	if err = db.Where("bid_number = ?", auction.BidNumber).First(&existing).Error; err != nil {
		return false, err
	}
	*auction = existing
	return false, nil
}

func (r *AuctionRepositoryImpl) openQuery(db *gorm.DB, now time.Time, filter models.AuctionFilter) *gorm.DB {
	q := r.applyFilter(db.Model(&models.Auction{}), filter)
	return q.Where("status = ? AND archived_at IS NULL AND window_closes_at > ?", models.AuctionStatusOpen, now)
}

// ListOpen returns auctions still accepting bids at now, soonest closing first
func (r *AuctionRepositoryImpl) ListOpen(ctx context.Context, now time.Time, filter models.AuctionFilter, limit, offset int) ([]*models.Auction, error) {
	db := r.getDB(ctx)
	query := paginate(r.openQuery(db, now, filter), "window_closes_at ASC, id ASC", limit, offset)
	var rows []*models.Auction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AuctionRepositoryImpl) CountOpen(ctx context.Context, now time.Time, filter models.AuctionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.openQuery(db, now, filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListDueForClosing returns auctions whose window elapsed and that are either open
// or hold a closing claim older than staleBefore. excludeIDs are left out before
// the limit applies.
func (r *AuctionRepositoryImpl) ListDueForClosing(ctx context.Context, now, staleBefore time.Time, excludeIDs []uint, limit int) ([]*models.Auction, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Auction{}).
		Where("archived_at IS NULL AND window_closes_at <= ?", now).
		Where("(status = ? OR (status = ? AND claimed_at < ?))", models.AuctionStatusOpen, models.AuctionStatusClosing, staleBefore)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	query = paginate(query, "window_closes_at ASC, id ASC", limit, 0)
	var rows []*models.Auction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Claim moves an auction to closing with the given token. It succeeds only for an
// elapsed, unarchived auction that is open or whose previous claim went stale.
// Exactly one of several concurrent callers observes true.
func (r *AuctionRepositoryImpl) Claim(ctx context.Context, id uint, token string, now, staleBefore time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Auction{}).
		Where("id = ? AND archived_at IS NULL AND window_closes_at <= ?", id, now).
		Where("(status = ? OR (status = ? AND claimed_at < ?))", models.AuctionStatusOpen, models.AuctionStatusClosing, staleBefore).
		Updates(map[string]any{
			"status":         models.AuctionStatusClosing,
			"claim_token":    token,
			"claimed_at":     now,
			"claim_attempts": gorm.Expr("claim_attempts + 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkClosed finalizes a claimed auction. ErrStaleClaim means the token no longer holds the claim.
func (r *AuctionRepositoryImpl) MarkClosed(ctx context.Context, id uint, token string, outcome models.AuctionOutcome, now time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Auction{}).
		Where("id = ? AND status = ? AND claim_token = ?", id, models.AuctionStatusClosing, token).
		Updates(map[string]any{
			"status":      models.AuctionStatusClosed,
			"outcome":     outcome,
			"closed_at":   now,
			"claim_token": gorm.Expr("NULL"),
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrStaleClaim
	}
	return nil
}

// ReleaseClaim hands a failed claim back so a later tick can retry it
func (r *AuctionRepositoryImpl) ReleaseClaim(ctx context.Context, id uint, token string, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Auction{}).
		Where("id = ? AND status = ? AND claim_token = ?", id, models.AuctionStatusClosing, token).
		Updates(map[string]any{
			"status":      models.AuctionStatusOpen,
			"claim_token": gorm.Expr("NULL"),
			"claimed_at":  gorm.Expr("NULL"),
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListClosedForArchive returns closed, unarchived auctions that closed at or before closedBefore
func (r *AuctionRepositoryImpl) ListClosedForArchive(ctx context.Context, closedBefore time.Time, limit int) ([]*models.Auction, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Auction{}).
		Where("status = ? AND archived_at IS NULL AND closed_at <= ?", models.AuctionStatusClosed, closedBefore)
	query = paginate(query, "closed_at ASC, id ASC", limit, 0)
	var rows []*models.Auction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkArchived sets archived_at once; false means another run already archived it
func (r *AuctionRepositoryImpl) MarkArchived(ctx context.Context, id uint, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Auction{}).
		Where("id = ? AND archived_at IS NULL", id).
		Updates(map[string]any{
			"archived_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
