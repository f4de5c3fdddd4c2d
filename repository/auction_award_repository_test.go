package repository_test

import (
	"testing"
	"time"

	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	testingutil "github.com/amirphl/freight-bidding/testing"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuctionAwardRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewAuctionAwardRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		base := testingutil.BaseTime
		awardedAt := base.Add(26 * time.Minute)

		auction, err := fixtures.CreateTestAuction("BN-AWARD-1", base)
		require.NoError(t, err)
		winner, err := fixtures.CreateTestBid(auction, "carrier-a", 45000, base.Add(time.Minute))
		require.NoError(t, err)
		runnerUp, err := fixtures.CreateTestBid(auction, "carrier-b", 46000, base.Add(2*time.Minute))
		require.NoError(t, err)

		t.Run("Create", func(t *testing.T) {
			award := &models.AuctionAward{
				AuctionID:         auction.ID,
				BidNumber:         auction.BidNumber,
				BidID:             winner.ID,
				WinnerCarrierID:   winner.CarrierID,
				WinnerAmountCents: winner.AmountCents,
				AwardedBy:         models.AwardedByEngine,
				AwardedAt:         awardedAt,
				CreatedAt:         awardedAt,
			}
			require.NoError(t, repo.Create(ctx, award))
			assert.NotZero(t, award.ID)
		})

		t.Run("SecondAwardIsRejected", func(t *testing.T) {
			award := &models.AuctionAward{
				AuctionID:         auction.ID,
				BidNumber:         auction.BidNumber,
				BidID:             runnerUp.ID,
				WinnerCarrierID:   runnerUp.CarrierID,
				WinnerAmountCents: runnerUp.AmountCents,
				AwardedBy:         models.AwardedByEngine,
				AwardedAt:         awardedAt.Add(time.Second),
				CreatedAt:         awardedAt.Add(time.Second),
			}
			err := repo.Create(ctx, award)
			assert.ErrorIs(t, err, repository.ErrDuplicateAward)

			stored, err := repo.ByAuctionID(ctx, auction.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, "carrier-a", stored.WinnerCarrierID)
			assert.Equal(t, int64(45000), stored.WinnerAmountCents)

			count, err := repo.CountByAuctionID(ctx, auction.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("Lookups", func(t *testing.T) {
			byNumber, err := repo.ByBidNumber(ctx, "BN-AWARD-1")
			require.NoError(t, err)
			require.NotNil(t, byNumber)
			assert.Equal(t, winner.ID, byNumber.BidID)

			missing, err := repo.ByBidNumber(ctx, "BN-NONE")
			require.NoError(t, err)
			assert.Nil(t, missing)

			won, err := repo.ByFilter(ctx, models.AuctionAwardFilter{WinnerCarrierID: utils.ToPtr("carrier-a")}, "awarded_at DESC", 10, 0)
			require.NoError(t, err)
			assert.Len(t, won, 1)

			won, err = repo.ByFilter(ctx, models.AuctionAwardFilter{WinnerCarrierID: utils.ToPtr("carrier-b")}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, won)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAuctionEventRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewAuctionEventRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		base := testingutil.BaseTime

		auction, err := fixtures.CreateTestAuction("BN-EVENTS-1", base)
		require.NoError(t, err)

		events := []*models.AuctionEvent{
			{AuctionID: auction.ID, BidNumber: auction.BidNumber, Type: models.AuctionEventCreated, CreatedAt: base},
			{AuctionID: auction.ID, BidNumber: auction.BidNumber, Type: models.AuctionEventBidPlaced, CarrierID: utils.ToPtr("carrier-a"), AmountCents: utils.ToPtr(int64(45000)), CreatedAt: base.Add(time.Minute)},
			{AuctionID: auction.ID, BidNumber: auction.BidNumber, Type: models.AuctionEventBidWithdrawn, CarrierID: utils.ToPtr("carrier-a"), CreatedAt: base.Add(2 * time.Minute)},
		}
		require.NoError(t, repo.SaveBatch(ctx, events))

		t.Run("ListByAuction", func(t *testing.T) {
			rows, err := repo.ListByAuction(ctx, auction.ID, 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, models.AuctionEventCreated, rows[0].Type)
			assert.Equal(t, models.AuctionEventBidWithdrawn, rows[2].Type)

			page, err := repo.ListByAuction(ctx, auction.ID, 1, 1)
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, models.AuctionEventBidPlaced, page[0].Type)
		})

		t.Run("CountByCarrier", func(t *testing.T) {
			count, err := repo.Count(ctx, models.AuctionEventFilter{CarrierID: utils.ToPtr("carrier-a")})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		return nil
	})
	require.NoError(t, err)
}
