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

func TestAuctionQueryFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		ctx := testingutil.CreateTestContext()
		flow := env.queryFlow()
		bids := env.bidFlow(nil)

		_, err := env.fixtures.CreateTestAuction("BN-Q-EXPIRED", testingutil.BaseTime.Add(-time.Hour))
		require.NoError(t, err)

		q1 := env.openAuction(t, "BN-Q-1", testingutil.WithTag("TX"))
		env.clock.Advance(time.Minute)
		q2 := env.openAuction(t, "BN-Q-2", testingutil.WithTag("OK"))
		env.clock.Advance(time.Minute)
		env.openAuction(t, "BN-Q-3", testingutil.WithTag("tx"))

		env.bidAt(t, bids, q1, "carrier-a", 50000, 3*time.Minute)
		env.bidAt(t, bids, q1, "carrier-b", 47500, 4*time.Minute)
		env.bidAt(t, bids, q1, "carrier-c", 41000, 5*time.Minute)
		env.clock.Advance(30 * time.Second)
		_, err = bids.WithdrawBid(ctx, "BN-Q-1", "carrier-c", nil)
		require.NoError(t, err)
		env.bidAt(t, bids, q2, "carrier-a", 61000, 3*time.Minute)
		env.clock.Set(testingutil.BaseTime.Add(6 * time.Minute))

		t.Run("ListOpenAuctions", func(t *testing.T) {
			resp, err := flow.ListOpenAuctions(ctx, nil)
			require.NoError(t, err)

			require.Len(t, resp.Auctions, 3)
			assert.Equal(t, dto.PaginationInfo{Total: 3, Page: 1, Limit: 20, TotalPages: 1}, resp.Pagination)

			first := resp.Auctions[0]
			assert.Equal(t, "BN-Q-1", first.BidNumber)
			assert.Equal(t, int64(2), first.BidsCount)
			assert.Equal(t, int64(47500), utils.Deref(first.LowestAmountCents))
			assert.Equal(t, "475.00", utils.Deref(first.LowestAmount))
			assert.Equal(t, int64(19*60), first.TimeLeftSeconds)
			assert.True(t, first.IsOpen)

			assert.Equal(t, "BN-Q-2", resp.Auctions[1].BidNumber)
			assert.Equal(t, int64(1), resp.Auctions[1].BidsCount)

			assert.Equal(t, "BN-Q-3", resp.Auctions[2].BidNumber)
			assert.Zero(t, resp.Auctions[2].BidsCount)
			assert.Nil(t, resp.Auctions[2].LowestAmountCents)
		})

		t.Run("ListOpenAuctionsFilters", func(t *testing.T) {
			tests := []struct {
				name string
				req  *dto.ListOpenAuctionsRequest
				want []string
			}{
				{"tag is case insensitive", &dto.ListOpenAuctionsRequest{Tag: "tx"}, []string{"BN-Q-1", "BN-Q-3"}},
				{"bid number search", &dto.ListOpenAuctionsRequest{Q: "Q-2"}, []string{"BN-Q-2"}},
				{"second page", &dto.ListOpenAuctionsRequest{Page: 2, PageSize: 2}, []string{"BN-Q-3"}},
				{"no match", &dto.ListOpenAuctionsRequest{Tag: "CA"}, []string{}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					resp, err := flow.ListOpenAuctions(ctx, tt.req)
					require.NoError(t, err)
					got := make([]string, 0, len(resp.Auctions))
					for _, a := range resp.Auctions {
						got = append(got, a.BidNumber)
					}
					assert.Equal(t, tt.want, got)
				})
			}
		})

		t.Run("GetBidSummaryWhileOpen", func(t *testing.T) {
			resp, err := flow.GetBidSummary(ctx, "BN-Q-1", "carrier-c")
			require.NoError(t, err)

			assert.Len(t, resp.Bids, 3)
			assert.Equal(t, int64(2), resp.Stats.BidsCount)
			assert.Equal(t, int64(3), resp.Stats.TotalBidsCount)
			assert.Equal(t, int64(47500), utils.Deref(resp.Stats.LowestAmountCents))
			assert.Equal(t, "carrier-b", utils.Deref(resp.Stats.LowestCarrierID))
			assert.Equal(t, int64(50000), utils.Deref(resp.Stats.HighestAmountCents))
			assert.Equal(t, int64(48750), utils.Deref(resp.Stats.AverageAmountCents))

			require.NotNil(t, resp.UserBid)
			assert.Equal(t, "withdrawn", resp.UserBid.Status)
			assert.NotNil(t, resp.UserBid.WithdrawnAt)

			assert.Equal(t, int64(2), resp.Auction.BidsCount)
			assert.Nil(t, resp.Award)
		})

		t.Run("GetBidSummaryWithoutViewer", func(t *testing.T) {
			resp, err := flow.GetBidSummary(ctx, "BN-Q-3", "")
			require.NoError(t, err)
			assert.Empty(t, resp.Bids)
			assert.Nil(t, resp.UserBid)
			assert.Nil(t, resp.Stats.LowestAmountCents)
			assert.Nil(t, resp.Stats.AverageAmountCents)
		})

		t.Run("GetBidSummaryUnknownAuction", func(t *testing.T) {
			_, err := flow.GetBidSummary(ctx, "BN-NOPE", "")
			assert.True(t, businessflow.IsAuctionNotFound(err))
		})

		env.pastWindow(q1)
		_, err = env.awardFlow(nil, nil).CloseAuction(ctx, "BN-Q-1")
		require.NoError(t, err)

		t.Run("GetBidSummaryAfterAward", func(t *testing.T) {
			resp, err := flow.GetBidSummary(ctx, "BN-Q-1", "carrier-b")
			require.NoError(t, err)

			require.NotNil(t, resp.Award)
			assert.Equal(t, "carrier-b", resp.Award.WinnerCarrierID)
			assert.Equal(t, int64(47500), resp.Award.WinnerAmountCents)
			assert.Equal(t, "475.00", resp.Award.WinnerAmount)
			assert.Equal(t, "closed", resp.Auction.Status)
			assert.Equal(t, "awarded", utils.Deref(resp.Auction.Outcome))
			assert.False(t, resp.Auction.IsOpen)
			require.NotNil(t, resp.UserBid)
			assert.Equal(t, "carrier-b", resp.UserBid.CarrierID)
		})

		t.Run("ListMyBids", func(t *testing.T) {
			resp, err := flow.ListMyBids(ctx, "carrier-a", 0, 0)
			require.NoError(t, err)
			require.Len(t, resp.Bids, 2)
			assert.Equal(t, int64(2), resp.Pagination.Total)
			assert.Equal(t, "BN-Q-2", resp.Bids[0].BidNumber)

			_, err = flow.ListMyBids(ctx, " ", 1, 20)
			assert.ErrorIs(t, err, businessflow.ErrInvalidCarrier)
		})

		t.Run("ListMyAwards", func(t *testing.T) {
			resp, err := flow.ListMyAwards(ctx, "carrier-b", 1, 20)
			require.NoError(t, err)
			require.Len(t, resp.Awards, 1)
			assert.Equal(t, "BN-Q-1", resp.Awards[0].BidNumber)

			none, err := flow.ListMyAwards(ctx, "carrier-a", 1, 20)
			require.NoError(t, err)
			assert.NotNil(t, none.Awards)
			assert.Empty(t, none.Awards)

			_, err = flow.ListMyAwards(ctx, "", 1, 20)
			assert.ErrorIs(t, err, businessflow.ErrInvalidCarrier)
		})

		env.clock.Advance(time.Hour)
		result, err := env.archiveFlow(nil, nil).ArchiveClosedAuctions(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, 1, result.Archived)

		t.Run("ListArchive", func(t *testing.T) {
			resp, err := flow.ListArchive(ctx, nil)
			require.NoError(t, err)
			require.Len(t, resp.Records, 1)
			rec := resp.Records[0]
			assert.Equal(t, "BN-Q-1", rec.BidNumber)
			assert.Equal(t, "TX", rec.StateTag)
			assert.Equal(t, "awarded", rec.Outcome)
			assert.Nil(t, rec.Bids)

			unawarded, err := flow.ListArchive(ctx, &dto.ListArchiveRequest{Outcome: "UNAWARDED"})
			require.NoError(t, err)
			assert.Empty(t, unawarded.Records)
			assert.Equal(t, int64(0), unawarded.Pagination.Total)
		})

		t.Run("ListArchiveRejectsInvalidFilters", func(t *testing.T) {
			from := testingutil.BaseTime
			to := from.Add(-24 * time.Hour)

			tests := []struct {
				name string
				req  *dto.ListArchiveRequest
			}{
				{"to before from", &dto.ListArchiveRequest{From: &from, To: &to}},
				{"max below min distance", &dto.ListArchiveRequest{MinDistance: utils.ToPtr(500), MaxDistance: utils.ToPtr(100)}},
				{"unknown outcome", &dto.ListArchiveRequest{Outcome: "cancelled"}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					_, err := flow.ListArchive(ctx, tt.req)
					assert.ErrorIs(t, err, businessflow.ErrInvalidArchiveFilter)
				})
			}
		})

		t.Run("GetArchiveRecord", func(t *testing.T) {
			rec, err := flow.GetArchiveRecord(ctx, " BN-Q-1 ")
			require.NoError(t, err)
			require.Len(t, rec.Bids, 3)
			assert.Equal(t, 2, rec.BidCount)
			assert.Equal(t, 3, rec.TotalBidCount)
			assert.Equal(t, "carrier-b", utils.Deref(rec.WinnerCarrierID))

			_, err = flow.GetArchiveRecord(ctx, "BN-Q-2")
			assert.True(t, businessflow.IsArchiveRecordNotFound(err))
		})

		t.Run("ListAuctionEvents", func(t *testing.T) {
			resp, err := flow.ListAuctionEvents(ctx, "BN-Q-1", 1, 2)
			require.NoError(t, err)
			assert.Equal(t, "BN-Q-1", resp.BidNumber)
			assert.Equal(t, int64(7), resp.Pagination.Total)
			assert.Equal(t, 4, resp.Pagination.TotalPages)
			require.Len(t, resp.Events, 2)
			assert.Equal(t, models.AuctionEventBidPlaced, resp.Events[0].Type)
			assert.Equal(t, "carrier-a", utils.Deref(resp.Events[0].CarrierID))

			last, err := flow.ListAuctionEvents(ctx, "BN-Q-1", 4, 2)
			require.NoError(t, err)
			require.Len(t, last.Events, 1)
			assert.Equal(t, models.AuctionEventArchived, last.Events[0].Type)

			_, err = flow.ListAuctionEvents(ctx, "BN-NOPE", 1, 20)
			assert.True(t, businessflow.IsAuctionNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
