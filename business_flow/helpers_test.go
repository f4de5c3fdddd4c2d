package businessflow_test

import (
	"testing"
	"time"

	"github.com/amirphl/freight-bidding/app/services"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	testingutil "github.com/amirphl/freight-bidding/testing"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/stretchr/testify/require"
)

// flowEnv wires real repositories over a test database and a fake clock
type flowEnv struct {
	db       *testingutil.TestDB
	fixtures *testingutil.TestFixtures
	clock    *utils.FakeClock

	auctions repository.AuctionRepository
	bids     repository.CarrierBidRepository
	awards   repository.AuctionAwardRepository
	archive  repository.ArchivedAuctionRepository
	events   repository.AuctionEventRepository
}

func newFlowEnv(testDB *testingutil.TestDB) *flowEnv {
	return &flowEnv{
		db:       testDB,
		fixtures: testingutil.NewTestFixtures(testDB),
		clock:    utils.NewFakeClock(testingutil.BaseTime),
		auctions: repository.NewAuctionRepository(testDB.DB),
		bids:     repository.NewCarrierBidRepository(testDB.DB),
		awards:   repository.NewAuctionAwardRepository(testDB.DB),
		archive:  repository.NewArchivedAuctionRepository(testDB.DB),
		events:   repository.NewAuctionEventRepository(testDB.DB),
	}
}

func (e *flowEnv) bidFlow(notifier services.AuctionNotifier) businessflow.BidFlow {
	return businessflow.NewBidFlow(e.auctions, e.bids, e.awards, e.events, notifier, e.db.DB, e.clock, utils.DiscardLogger())
}

func (e *flowEnv) awardFlow(notifier services.AuctionNotifier, locker businessflow.AuctionLocker) businessflow.AwardFlow {
	return businessflow.NewAwardFlow(e.auctions, e.bids, e.awards, e.events, notifier, locker, e.db.DB, e.clock,
		utils.DiscardLogger(), businessflow.AwardEngineOptions{})
}

func (e *flowEnv) archiveFlow(mirror services.ArchiveMirror, notifier services.AuctionNotifier) businessflow.ArchiveFlow {
	return businessflow.NewArchiveFlow(e.auctions, e.bids, e.awards, e.archive, e.events, mirror, notifier, e.db.DB, e.clock,
		utils.DiscardLogger(), businessflow.ArchiveOptions{})
}

func (e *flowEnv) queryFlow() businessflow.AuctionQueryFlow {
	return businessflow.NewAuctionQueryFlow(e.auctions, e.bids, e.awards, e.archive, e.events, e.clock)
}

func (e *flowEnv) ingestFlow() businessflow.AuctionIngestFlow {
	return businessflow.NewAuctionIngestFlow(e.auctions, e.events, e.db.DB, e.clock, utils.DiscardLogger())
}

// openAuction creates an auction received at the clock's current instant
func (e *flowEnv) openAuction(t *testing.T, bidNumber string, opts ...testingutil.AuctionOption) *models.Auction {
	t.Helper()
	auction, err := e.fixtures.CreateTestAuction(bidNumber, e.clock.Now(), opts...)
	require.NoError(t, err)
	return auction
}

// bidAt sets the clock to offset after the auction was received and submits a bid
func (e *flowEnv) bidAt(t *testing.T, flow businessflow.BidFlow, auction *models.Auction, carrierID string, cents int64, offset time.Duration) {
	t.Helper()
	e.clock.Set(auction.ReceivedAt.Add(offset))
	_, err := flow.SubmitOrUpdateBid(testingutil.CreateTestContext(), auction.BidNumber, carrierID, cents, nil, nil)
	require.NoError(t, err)
}

// pastWindow moves the clock just beyond the auction's bidding window
func (e *flowEnv) pastWindow(auction *models.Auction) {
	e.clock.Set(auction.WindowClosesAt.Add(time.Second))
}

func (e *flowEnv) eventTypes(t *testing.T, auction *models.Auction) []string {
	t.Helper()
	rows, err := e.events.ListByAuction(testingutil.CreateTestContext(), auction.ID, 0, 0)
	require.NoError(t, err)
	types := make([]string, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.Type)
	}
	return types
}
