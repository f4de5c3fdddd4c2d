package businessflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/freight-bidding/app/services"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	testingutil "github.com/amirphl/freight-bidding/testing"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardFlowWinnerSelection(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		engine := env.awardFlow(nil, businessflow.NewLocalAuctionLocker())
		ctx := testingutil.CreateTestContext()

		t.Run("LowestAmountWins", func(t *testing.T) {
			env.clock.Set(testingutil.BaseTime)
			auction := env.openAuction(t, "BN-A")
			env.bidAt(t, bids, auction, "carrier-x", 50000, 1*time.Minute)
			env.bidAt(t, bids, auction, "carrier-y", 45000, 2*time.Minute)
			env.bidAt(t, bids, auction, "carrier-z", 47500, 3*time.Minute)

			env.pastWindow(auction)
			outcome, err := engine.CloseAuction(ctx, "BN-A")
			require.NoError(t, err)
			assert.Equal(t, models.AuctionOutcomeAwarded, outcome.Outcome)
			require.NotNil(t, outcome.Award)
			assert.Equal(t, "carrier-y", outcome.Award.WinnerCarrierID)
			assert.Equal(t, int64(45000), outcome.Award.WinnerAmountCents)
			assert.Equal(t, models.AwardedByEngine, outcome.Award.AwardedBy)

			reloaded, err := env.fixtures.ReloadAuction(auction.ID)
			require.NoError(t, err)
			assert.Equal(t, models.AuctionStatusClosed, reloaded.Status)
			require.NotNil(t, reloaded.Outcome)
			assert.Equal(t, models.AuctionOutcomeAwarded, *reloaded.Outcome)

			assert.Equal(t, []string{
				models.AuctionEventBidPlaced,
				models.AuctionEventBidPlaced,
				models.AuctionEventBidPlaced,
				models.AuctionEventClaimed,
				models.AuctionEventAwarded,
			}, env.eventTypes(t, auction))
		})

		t.Run("TieGoesToEarliestBid", func(t *testing.T) {
			env.clock.Set(testingutil.BaseTime.Add(time.Hour))
			auction := env.openAuction(t, "BN-B")
			env.bidAt(t, bids, auction, "carrier-first", 45000, 1*time.Minute)
			env.bidAt(t, bids, auction, "carrier-second", 45000, 4*time.Minute)

			env.pastWindow(auction)
			outcome, err := engine.CloseAuction(ctx, "BN-B")
			require.NoError(t, err)
			require.NotNil(t, outcome.Award)
			assert.Equal(t, "carrier-first", outcome.Award.WinnerCarrierID)
		})

		t.Run("UpdatedBidLosesItsEarlierTimestamp", func(t *testing.T) {
			env.clock.Set(testingutil.BaseTime.Add(2 * time.Hour))
			auction := env.openAuction(t, "BN-B2")
			env.bidAt(t, bids, auction, "carrier-early", 46000, 1*time.Minute)
			env.bidAt(t, bids, auction, "carrier-mid", 45000, 2*time.Minute)
			// matching the leader by resubmitting moves carrier-early behind it
			env.bidAt(t, bids, auction, "carrier-early", 45000, 3*time.Minute)

			env.pastWindow(auction)
			outcome, err := engine.CloseAuction(ctx, "BN-B2")
			require.NoError(t, err)
			require.NotNil(t, outcome.Award)
			assert.Equal(t, "carrier-mid", outcome.Award.WinnerCarrierID)
		})

		t.Run("WithdrawnLowestIsIgnored", func(t *testing.T) {
			env.clock.Set(testingutil.BaseTime.Add(3 * time.Hour))
			auction := env.openAuction(t, "BN-C")
			env.bidAt(t, bids, auction, "carrier-cheap", 40000, 1*time.Minute)
			env.bidAt(t, bids, auction, "carrier-next", 42000, 2*time.Minute)

			env.clock.Set(auction.ReceivedAt.Add(10 * time.Minute))
			_, err := bids.WithdrawBid(ctx, "BN-C", "carrier-cheap", nil)
			require.NoError(t, err)

			env.pastWindow(auction)
			outcome, err := engine.CloseAuction(ctx, "BN-C")
			require.NoError(t, err)
			require.NotNil(t, outcome.Award)
			assert.Equal(t, "carrier-next", outcome.Award.WinnerCarrierID)
			assert.Equal(t, int64(42000), outcome.Award.WinnerAmountCents)
		})

		t.Run("NoBidsClosesUnawarded", func(t *testing.T) {
			env.clock.Set(testingutil.BaseTime.Add(4 * time.Hour))
			auction := env.openAuction(t, "BN-D")

			env.pastWindow(auction)
			outcome, err := engine.CloseAuction(ctx, "BN-D")
			require.NoError(t, err)
			assert.Equal(t, models.AuctionOutcomeUnawarded, outcome.Outcome)
			assert.Nil(t, outcome.Award)

			award, err := env.awards.ByAuctionID(ctx, auction.ID)
			require.NoError(t, err)
			assert.Nil(t, award)

			reloaded, err := env.fixtures.ReloadAuction(auction.ID)
			require.NoError(t, err)
			assert.Equal(t, models.AuctionStatusClosed, reloaded.Status)
			require.NotNil(t, reloaded.Outcome)
			assert.Equal(t, models.AuctionOutcomeUnawarded, *reloaded.Outcome)
			assert.Contains(t, env.eventTypes(t, auction), models.AuctionEventClosedUnawarded)
		})

		t.Run("OnlyWithdrawnBidsClosesUnawarded", func(t *testing.T) {
			env.clock.Set(testingutil.BaseTime.Add(5 * time.Hour))
			auction := env.openAuction(t, "BN-D2")
			env.bidAt(t, bids, auction, "carrier-gone", 40000, time.Minute)
			_, err := bids.WithdrawBid(ctx, "BN-D2", "carrier-gone", nil)
			require.NoError(t, err)

			env.pastWindow(auction)
			outcome, err := engine.CloseAuction(ctx, "BN-D2")
			require.NoError(t, err)
			assert.Equal(t, models.AuctionOutcomeUnawarded, outcome.Outcome)
		})

		t.Run("CloseAuctionGuards", func(t *testing.T) {
			_, err := engine.CloseAuction(ctx, "BN-MISSING")
			assert.True(t, businessflow.IsAuctionNotFound(err))

			_, err = engine.CloseAuction(ctx, "BN-A")
			assert.True(t, businessflow.IsClaimLost(err))

			env.clock.Set(testingutil.BaseTime.Add(6 * time.Hour))
			env.openAuction(t, "BN-EARLY")
			_, err = engine.CloseAuction(ctx, "BN-EARLY")
			assert.ErrorIs(t, err, businessflow.ErrAuctionNotClosed)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAwardFlowConcurrentClosers(t *testing.T) {
	lockers := map[string]func() businessflow.AuctionLocker{
		"claim only":   func() businessflow.AuctionLocker { return nil },
		"local locker": businessflow.NewLocalAuctionLocker,
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
				env := newFlowEnv(testDB)
				bids := env.bidFlow(nil)
				locker := newLocker()

				auction := env.openAuction(t, "BN-E")
				env.bidAt(t, bids, auction, "carrier-1", 51000, time.Minute)
				env.bidAt(t, bids, auction, "carrier-2", 49000, 2*time.Minute)
				env.pastWindow(auction)

				const workers = 6
				var (
					wg       sync.WaitGroup
					won      atomic.Int32
					lost     atomic.Int32
					unwanted atomic.Int32
				)
				for i := 0; i < workers; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						// each worker gets its own engine, as separate processes would
						engine := env.awardFlow(nil, locker)
						_, err := engine.CloseAuction(context.Background(), "BN-E")
						switch {
						case err == nil:
							won.Add(1)
						case businessflow.IsClaimLost(err) || businessflow.IsLockBusy(err):
							lost.Add(1)
						default:
							unwanted.Add(1)
						}
					}()
				}
				wg.Wait()

				assert.Equal(t, int32(1), won.Load())
				assert.Equal(t, int32(workers-1), lost.Load())
				assert.Zero(t, unwanted.Load())

				count, err := env.awards.CountByAuctionID(context.Background(), auction.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(1), count)

				award, err := env.awards.ByAuctionID(context.Background(), auction.ID)
				require.NoError(t, err)
				assert.Equal(t, "carrier-2", award.WinnerCarrierID)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestAwardFlowCloseDueAuctions(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		ctx := testingutil.CreateTestContext()

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		notifier := services.NewMockAuctionNotifier(ctrl)

		var notified []services.AuctionNotification
		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, n services.AuctionNotification) {
			notified = append(notified, n)
		}).AnyTimes()

		engine := env.awardFlow(notifier, businessflow.NewLocalAuctionLocker())

		awarded := env.openAuction(t, "BN-DUE-1")
		env.bidAt(t, bids, awarded, "carrier-a", 30000, time.Minute)
		env.clock.Set(testingutil.BaseTime)
		unawarded := env.openAuction(t, "BN-DUE-2")
		env.clock.Set(testingutil.BaseTime.Add(10 * time.Minute))
		notDue := env.openAuction(t, "BN-NOT-DUE")

		env.clock.Set(testingutil.BaseTime.Add(26 * time.Minute))
		notified = nil

		result, err := engine.CloseDueAuctions(ctx)
		require.NoError(t, err)
		assert.Equal(t, &businessflow.CloseResult{Awarded: 1, Unawarded: 1}, result)

		stillOpen, err := env.fixtures.ReloadAuction(notDue.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AuctionStatusOpen, stillOpen.Status)

		require.Len(t, notified, 2)
		types := map[string]string{}
		for _, n := range notified {
			types[n.BidNumber] = n.Type
		}
		assert.Equal(t, services.NotificationAuctionAwarded, types[awarded.BidNumber])
		assert.Equal(t, services.NotificationAuctionClosedUnawarded, types[unawarded.BidNumber])

		t.Run("SecondPassIsNoop", func(t *testing.T) {
			result, err := engine.CloseDueAuctions(ctx)
			require.NoError(t, err)
			assert.Equal(t, &businessflow.CloseResult{}, result)
		})

		t.Run("LaterPassPicksUpNewlyDue", func(t *testing.T) {
			env.clock.Set(notDue.WindowClosesAt)
			result, err := engine.CloseDueAuctions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Unawarded)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAwardFlowStaleClaimRecovery(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		engine := env.awardFlow(nil, nil)
		ctx := testingutil.CreateTestContext()

		auction := env.openAuction(t, "BN-CRASHED")
		env.bidAt(t, bids, auction, "carrier-a", 30000, time.Minute)
		env.pastWindow(auction)

		// a worker claimed the auction and died before deciding
		claimed, err := env.auctions.Claim(ctx, auction.ID, "dead-worker", env.clock.Now(), env.clock.Now())
		require.NoError(t, err)
		require.True(t, claimed)

		result, err := engine.CloseDueAuctions(ctx)
		require.NoError(t, err)
		assert.Equal(t, &businessflow.CloseResult{}, result)

		env.clock.Advance(31 * time.Second)
		result, err = engine.CloseDueAuctions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Awarded)

		reloaded, err := env.fixtures.ReloadAuction(auction.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AuctionStatusClosed, reloaded.Status)
		assert.Equal(t, 2, reloaded.ClaimAttempts)

		return nil
	})
	require.NoError(t, err)
}

// failingAwardRepo fails award creation while fail is set
type failingAwardRepo struct {
	repository.AuctionAwardRepository
	fail atomic.Bool
}

func (r *failingAwardRepo) Create(ctx context.Context, award *models.AuctionAward) error {
	if r.fail.Load() {
		return errors.New("connection reset by peer")
	}
	return r.AuctionAwardRepository.Create(ctx, award)
}

func TestAwardFlowFailureBackoff(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		ctx := testingutil.CreateTestContext()

		awards := &failingAwardRepo{AuctionAwardRepository: env.awards}
		awards.fail.Store(true)
		engine := businessflow.NewAwardFlow(env.auctions, env.bids, awards, env.events, nil, nil, testDB.DB, env.clock,
			utils.DiscardLogger(), businessflow.AwardEngineOptions{BackoffBase: 2 * time.Second, BackoffMax: 8 * time.Second})

		auction := env.openAuction(t, "BN-FLAKY")
		env.bidAt(t, bids, auction, "carrier-a", 30000, time.Minute)
		env.pastWindow(auction)

		result, err := engine.CloseDueAuctions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)

		released, err := env.fixtures.ReloadAuction(auction.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AuctionStatusOpen, released.Status)
		assert.Nil(t, released.ClaimToken)
		assert.Contains(t, env.eventTypes(t, auction), models.AuctionEventClaimReleased)
		assert.NotContains(t, env.eventTypes(t, auction), models.AuctionEventClaimed)

		t.Run("RetryWaitsForBackoff", func(t *testing.T) {
			result, err := engine.CloseDueAuctions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Skipped)
		})

		t.Run("BackoffDoubles", func(t *testing.T) {
			env.clock.Advance(2 * time.Second)
			result, err := engine.CloseDueAuctions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Failed)

			env.clock.Advance(3 * time.Second)
			result, err = engine.CloseDueAuctions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Skipped)
		})

		t.Run("RecoversOnceStorageHeals", func(t *testing.T) {
			awards.fail.Store(false)
			env.clock.Advance(time.Second)
			result, err := engine.CloseDueAuctions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Awarded)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAwardFlowCloseAuctionStorageFailure(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		ctx := testingutil.CreateTestContext()

		awards := &failingAwardRepo{AuctionAwardRepository: env.awards}
		awards.fail.Store(true)
		engine := businessflow.NewAwardFlow(env.auctions, env.bids, awards, env.events, nil, nil, testDB.DB, env.clock,
			utils.DiscardLogger(), businessflow.AwardEngineOptions{})

		auction := env.openAuction(t, "BN-DOWN")
		env.bidAt(t, bids, auction, "carrier-a", 30000, time.Minute)
		env.pastWindow(auction)

		_, err := engine.CloseAuction(ctx, "BN-DOWN")
		require.Error(t, err)
		assert.True(t, businessflow.IsStorageUnavailable(err))
		assert.False(t, businessflow.IsDuplicateAward(err))

		var be *businessflow.BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "CLOSE_AUCTION_FAILED", be.Code)
		return nil
	})
	require.NoError(t, err)
}

func TestAwardFlowBackoffDoesNotStarveQueue(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		ctx := testingutil.CreateTestContext()

		awards := &failingAwardRepo{AuctionAwardRepository: env.awards}
		awards.fail.Store(true)
		engine := businessflow.NewAwardFlow(env.auctions, env.bids, awards, env.events, nil, nil, testDB.DB, env.clock,
			utils.DiscardLogger(), businessflow.AwardEngineOptions{BatchSize: 1, BackoffBase: time.Minute, BackoffMax: time.Hour})

		// the stuck auction sorts first and keeps failing on award insert
		stuck := env.openAuction(t, "BN-STUCK")
		env.bidAt(t, bids, stuck, "carrier-a", 30000, time.Minute)
		next := env.openAuction(t, "BN-NEXT")
		env.pastWindow(next)

		result, err := engine.CloseDueAuctions(ctx)
		require.NoError(t, err)
		assert.Equal(t, &businessflow.CloseResult{Failed: 1}, result)

		result, err = engine.CloseDueAuctions(ctx)
		require.NoError(t, err)
		assert.Equal(t, &businessflow.CloseResult{Unawarded: 1, Skipped: 1}, result)

		closed, err := env.fixtures.ReloadAuction(next.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AuctionStatusClosed, closed.Status)

		waiting, err := env.fixtures.ReloadAuction(stuck.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AuctionStatusOpen, waiting.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestAwardFlowNeverOverwritesAward(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(testDB)
		bids := env.bidFlow(nil)
		engine := env.awardFlow(nil, nil)
		ctx := testingutil.CreateTestContext()

		auction := env.openAuction(t, "BN-PREAWARDED")
		env.bidAt(t, bids, auction, "carrier-a", 30000, time.Minute)
		env.bidAt(t, bids, auction, "carrier-b", 29000, 2*time.Minute)

		first, err := env.bids.ByAuctionAndCarrier(ctx, auction.ID, "carrier-a")
		require.NoError(t, err)
		existing := &models.AuctionAward{
			AuctionID:         auction.ID,
			BidNumber:         auction.BidNumber,
			BidID:             first.ID,
			WinnerCarrierID:   "carrier-a",
			WinnerAmountCents: 30000,
			AwardedBy:         "dispatcher",
			AwardedAt:         env.clock.Now(),
			CreatedAt:         env.clock.Now(),
		}
		require.NoError(t, env.awards.Create(ctx, existing))

		env.pastWindow(auction)
		_, err = engine.CloseAuction(ctx, auction.BidNumber)
		require.Error(t, err)
		assert.True(t, businessflow.IsDuplicateAward(err))

		stored, err := env.awards.ByAuctionID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, "carrier-a", stored.WinnerCarrierID)
		assert.Equal(t, "dispatcher", stored.AwardedBy)

		reloaded, err := env.fixtures.ReloadAuction(auction.ID)
		require.NoError(t, err)
		assert.NotEqual(t, models.AuctionStatusClosed, reloaded.Status)

		return nil
	})
	require.NoError(t, err)
}
