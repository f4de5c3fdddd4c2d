// Package services provides external service integrations and technical concerns like notifications, tokens and archive mirroring
package services

//go:generate mockgen -source=notification_service.go -destination=mock_notification_service.go -package=services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notification types emitted by the auction engine
const (
	NotificationBidPlaced               = "bid_placed"
	NotificationBidWithdrawn            = "bid_withdrawn"
	NotificationAuctionAwarded          = "auction_awarded"
	NotificationAuctionClosedUnawarded  = "auction_closed_unawarded"
	NotificationAuctionArchived         = "auction_archived"
	defaultNotificationQueueSize        = 1024
	defaultNotificationDeliveryDeadline = 5 * time.Second
)

// AuctionNotification is one best-effort event for the notification collaborator
type AuctionNotification struct {
	Type        string    `json:"type"`
	BidNumber   string    `json:"bid_number"`
	CarrierID   string    `json:"carrier_id,omitempty"`
	AmountCents *int64    `json:"amount_cents,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AuctionNotifier accepts events without blocking the caller on delivery
type AuctionNotifier interface {
	Notify(ctx context.Context, n AuctionNotification)
}

// NotificationProvider delivers a single event to a concrete channel
type NotificationProvider interface {
	Name() string
	Deliver(ctx context.Context, n AuctionNotification) error
}

// AsyncNotifier queues events and delivers them from background workers.
// A full queue drops the event and logs it; callers never wait on providers.
type AsyncNotifier struct {
	providers []NotificationProvider
	logger    logrus.FieldLogger
	queue     chan AuctionNotification
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Uint64
}

// NewAsyncNotifier starts workers draining a queue of the given size
func NewAsyncNotifier(logger logrus.FieldLogger, queueSize, workers int, providers ...NotificationProvider) *AsyncNotifier {
	if queueSize <= 0 {
		queueSize = defaultNotificationQueueSize
	}
	if workers <= 0 {
		workers = 1
	}
	n := &AsyncNotifier{
		providers: providers,
		logger:    logger,
		queue:     make(chan AuctionNotification, queueSize),
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.run()
	}
	return n
}

// Notify enqueues the event. It never blocks.
func (n *AsyncNotifier) Notify(ctx context.Context, event AuctionNotification) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- event:
	default:
		n.dropped.Add(1)
		n.logger.WithFields(logrus.Fields{
			"type":       event.Type,
			"bid_number": event.BidNumber,
		}).Warn("notification queue full, dropping event")
	}
}

// Dropped returns how many events were discarded because the queue was full
func (n *AsyncNotifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close stops accepting events and waits until queued ones are delivered
func (n *AsyncNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *AsyncNotifier) run() {
	defer n.wg.Done()
	for event := range n.queue {
		for _, p := range n.providers {
			ctx, cancel := context.WithTimeout(context.Background(), defaultNotificationDeliveryDeadline)
			if err := p.Deliver(ctx, event); err != nil {
				n.logger.WithFields(logrus.Fields{
					"provider":   p.Name(),
					"type":       event.Type,
					"bid_number": event.BidNumber,
					"error":      err.Error(),
				}).Warn("notification delivery failed")
			}
			cancel()
		}
	}
}

// LogNotificationProvider writes events to the application log
type LogNotificationProvider struct {
	logger logrus.FieldLogger
}

func NewLogNotificationProvider(logger logrus.FieldLogger) NotificationProvider {
	return &LogNotificationProvider{logger: logger}
}

func (p *LogNotificationProvider) Name() string { return "log" }

func (p *LogNotificationProvider) Deliver(ctx context.Context, n AuctionNotification) error {
	fields := logrus.Fields{
		"type":        n.Type,
		"bid_number":  n.BidNumber,
		"occurred_at": n.OccurredAt.Format(time.RFC3339),
	}
	if n.CarrierID != "" {
		fields["carrier_id"] = n.CarrierID
	}
	if n.AmountCents != nil {
		fields["amount_cents"] = *n.AmountCents
	}
	p.logger.WithFields(fields).Info("auction notification")
	return nil
}

// RedisNotificationProvider publishes events as JSON on a Redis channel
type RedisNotificationProvider struct {
	rc      redis.UniversalClient
	channel string
}

func NewRedisNotificationProvider(rc redis.UniversalClient, channel string) NotificationProvider {
	return &RedisNotificationProvider{rc: rc, channel: channel}
}

func (p *RedisNotificationProvider) Name() string { return "redis" }

func (p *RedisNotificationProvider) Deliver(ctx context.Context, n AuctionNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.rc.Publish(ctx, p.channel, payload).Err()
}

// NoopNotifier discards every event
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, AuctionNotification) {}
