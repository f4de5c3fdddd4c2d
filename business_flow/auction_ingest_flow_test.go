package businessflow_test

import (
	"testing"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/models"
	testingutil "github.com/amirphl/freight-bidding/testing"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuctionIngestFlowCreateAuction(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		ctx := testingutil.CreateTestContext()
		flow := env.ingestFlow()
		metadata := businessflow.NewClientMetadata("10.0.0.7", "mail-ingest/1.4")

		t.Run("CreatesOpenAuction", func(t *testing.T) {
			resp, err := flow.CreateAuction(ctx, &dto.CreateAuctionRequest{
				BidNumber:     "  BN-100 ",
				DistanceMiles: utils.ToPtr(612),
				Stops:         []string{" Dallas, TX ", "", "Tulsa, OK"},
				Tag:           utils.ToPtr(" tx "),
				SourceChannel: utils.ToPtr("email"),
			}, metadata)
			require.NoError(t, err)

			assert.True(t, resp.Created)
			assert.Equal(t, "BN-100", resp.Auction.BidNumber)
			assert.Equal(t, "TX", utils.Deref(resp.Auction.Tag))
			assert.Equal(t, []string{"Dallas, TX", "Tulsa, OK"}, resp.Auction.Stops)
			assert.Equal(t, 2, resp.Auction.StopsCount)
			assert.Equal(t, "open", resp.Auction.Status)
			assert.True(t, resp.Auction.IsOpen)
			assert.Equal(t, int64(25*60), resp.Auction.TimeLeftSeconds)
			assert.Equal(t, testingutil.BaseTime.Format(time.RFC3339), resp.Auction.ReceivedAt)
			assert.Equal(t, testingutil.BaseTime.Add(models.BiddingWindow).Format(time.RFC3339), resp.Auction.WindowClosesAt)

			stored, err := env.auctions.ByBidNumber(ctx, "BN-100")
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.AuctionStatusOpen, stored.Status)
			assert.Equal(t, []string{models.AuctionEventCreated}, env.eventTypes(t, stored))
		})

		t.Run("DuplicatePostingIsIdempotent", func(t *testing.T) {
			env.clock.Advance(3 * time.Minute)
			resp, err := flow.CreateAuction(ctx, &dto.CreateAuctionRequest{
				BidNumber:     "BN-100",
				DistanceMiles: utils.ToPtr(9999),
			}, metadata)
			require.NoError(t, err)

			assert.False(t, resp.Created)
			assert.Equal(t, 612, utils.Deref(resp.Auction.DistanceMiles))
			assert.Equal(t, testingutil.BaseTime.Format(time.RFC3339), resp.Auction.ReceivedAt)
			assert.Equal(t, int64(22*60), resp.Auction.TimeLeftSeconds)

			stored, err := env.auctions.ByBidNumber(ctx, "BN-100")
			require.NoError(t, err)
			assert.Len(t, env.eventTypes(t, stored), 1)

			count, err := env.fixtures.CountRows(&models.Auction{}, "bid_number = ?", "BN-100")
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ExplicitReceivedAtAnchorsWindow", func(t *testing.T) {
			received := env.clock.Now().Add(-10 * time.Minute)
			resp, err := flow.CreateAuction(ctx, &dto.CreateAuctionRequest{
				BidNumber:  "BN-101",
				ReceivedAt: &received,
			}, nil)
			require.NoError(t, err)

			assert.True(t, resp.Created)
			assert.Equal(t, received.Add(models.BiddingWindow).Format(time.RFC3339), resp.Auction.WindowClosesAt)
			assert.Equal(t, int64(15*60), resp.Auction.TimeLeftSeconds)
			assert.Nil(t, resp.Auction.Tag)
			assert.Equal(t, []string{}, resp.Auction.Stops)
		})

		t.Run("AlreadyElapsedWindowIsClosedForBidding", func(t *testing.T) {
			received := env.clock.Now().Add(-time.Hour)
			resp, err := flow.CreateAuction(ctx, &dto.CreateAuctionRequest{
				BidNumber:  "BN-102",
				ReceivedAt: &received,
			}, nil)
			require.NoError(t, err)
			assert.False(t, resp.Auction.IsOpen)
			assert.Zero(t, resp.Auction.TimeLeftSeconds)
		})

		t.Run("Validation", func(t *testing.T) {
			pickup := testingutil.BaseTime.Add(24 * time.Hour)
			delivery := pickup.Add(-time.Hour)

			tests := []struct {
				name string
				req  *dto.CreateAuctionRequest
			}{
				{"nil request", nil},
				{"blank bid number", &dto.CreateAuctionRequest{BidNumber: "   "}},
				{"negative distance", &dto.CreateAuctionRequest{BidNumber: "BN-BAD-1", DistanceMiles: utils.ToPtr(-5)}},
				{"delivery before pickup", &dto.CreateAuctionRequest{BidNumber: "BN-BAD-2", PickupAt: &pickup, DeliveryAt: &delivery}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					resp, err := flow.CreateAuction(ctx, tt.req, nil)
					require.Error(t, err)
					assert.Nil(t, resp)
					assert.ErrorIs(t, err, businessflow.ErrInvalidAuction)

					var be *businessflow.BusinessError
					require.ErrorAs(t, err, &be)
					assert.Equal(t, "INVALID_AUCTION", be.Code)
				})
			}

			count, err := env.fixtures.CountRows(&models.Auction{}, "bid_number LIKE ?", "BN-BAD-%")
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		return nil
	})
	require.NoError(t, err)
}
