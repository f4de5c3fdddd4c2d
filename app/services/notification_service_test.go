package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/freight-bidding/app/services"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/golang/mock/gomock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var occurredAt = time.Date(2025, time.March, 3, 14, 25, 1, 0, time.UTC)

func notification(bidNumber string) services.AuctionNotification {
	return services.AuctionNotification{
		Type:       services.NotificationBidPlaced,
		BidNumber:  bidNumber,
		CarrierID:  "carrier-1",
		OccurredAt: occurredAt,
	}
}

func TestAsyncNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("CloseDeliversQueuedEventsInOrder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := services.NewMockNotificationProvider(ctrl)
		provider.EXPECT().Name().Return("mock").AnyTimes()

		var (
			mu  sync.Mutex
			got []string
		)
		provider.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n services.AuctionNotification) error {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, n.BidNumber)
				return nil
			}).Times(5)

		notifier := services.NewAsyncNotifier(utils.DiscardLogger(), 16, 1, provider)
		for _, bn := range []string{"BN-1", "BN-2", "BN-3", "BN-4", "BN-5"} {
			notifier.Notify(ctx, notification(bn))
		}
		notifier.Close()
		notifier.Close()

		// accepted silently and never delivered
		notifier.Notify(ctx, notification("BN-LATE"))

		assert.Equal(t, []string{"BN-1", "BN-2", "BN-3", "BN-4", "BN-5"}, got)
		assert.Zero(t, notifier.Dropped())
	})

	t.Run("FullQueueDropsWithoutBlocking", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := services.NewMockNotificationProvider(ctrl)
		provider.EXPECT().Name().Return("mock").AnyTimes()

		started := make(chan struct{})
		unblock := make(chan struct{})
		var once sync.Once
		provider.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, services.AuctionNotification) error {
				once.Do(func() { close(started) })
				<-unblock
				return nil
			}).Times(2)

		notifier := services.NewAsyncNotifier(utils.DiscardLogger(), 1, 1, provider)
		notifier.Notify(ctx, notification("BN-1"))
		<-started

		done := make(chan struct{})
		go func() {
			defer close(done)
			notifier.Notify(ctx, notification("BN-2"))
			notifier.Notify(ctx, notification("BN-3"))
			notifier.Notify(ctx, notification("BN-4"))
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Notify blocked on a full queue")
		}
		assert.Equal(t, uint64(2), notifier.Dropped())

		close(unblock)
		notifier.Close()
	})

	t.Run("ProviderFailureDoesNotStopOthers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		failing := services.NewMockNotificationProvider(ctrl)
		failing.EXPECT().Name().Return("flaky").AnyTimes()
		failing.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		healthy := services.NewMockNotificationProvider(ctrl)
		healthy.EXPECT().Name().Return("healthy").AnyTimes()
		healthy.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil)

		logger, hook := logtest.NewNullLogger()
		notifier := services.NewAsyncNotifier(logger, 4, 1, failing, healthy)
		notifier.Notify(ctx, notification("BN-1"))
		notifier.Close()

		require.Len(t, hook.AllEntries(), 1)
		entry := hook.LastEntry()
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "notification delivery failed", entry.Message)
		assert.Equal(t, "flaky", entry.Data["provider"])
		assert.Equal(t, "BN-1", entry.Data["bid_number"])
	})
}

func TestLogNotificationProvider(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	provider := services.NewLogNotificationProvider(logger)
	assert.Equal(t, "log", provider.Name())

	n := notification("BN-7")
	n.Type = services.NotificationAuctionAwarded
	n.AmountCents = utils.ToPtr(int64(45000))
	require.NoError(t, provider.Deliver(context.Background(), n))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "auction notification", entry.Message)
	assert.Equal(t, services.NotificationAuctionAwarded, entry.Data["type"])
	assert.Equal(t, "carrier-1", entry.Data["carrier_id"])
	assert.Equal(t, int64(45000), entry.Data["amount_cents"])
	assert.Equal(t, "2025-03-03T14:25:01Z", entry.Data["occurred_at"])
}

func TestRedisNotificationProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rc.Subscribe(ctx, "freight:notifications")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	provider := services.NewRedisNotificationProvider(rc, "freight:notifications")
	assert.Equal(t, "redis", provider.Name())

	n := notification("BN-9")
	n.Type = services.NotificationAuctionAwarded
	n.AmountCents = utils.ToPtr(int64(51000))
	require.NoError(t, provider.Deliver(ctx, n))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "freight:notifications", msg.Channel)

	var got services.AuctionNotification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, n, got)

	t.Run("UnreachableRedis", func(t *testing.T) {
		down := miniredis.RunT(t)
		downRC := redis.NewClient(&redis.Options{Addr: down.Addr(), MaxRetries: -1})
		defer downRC.Close()
		down.Close()

		err := services.NewRedisNotificationProvider(downRC, "freight:notifications").Deliver(context.Background(), n)
		assert.Error(t, err)
	})
}
