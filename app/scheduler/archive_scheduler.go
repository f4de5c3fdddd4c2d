package scheduler

import (
	"context"
	"time"

	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/sirupsen/logrus"
)

// ArchiveScheduler runs the archive pipeline on its own cadence
type ArchiveScheduler struct {
	flow     businessflow.ArchiveFlow
	clock    utils.Clock
	logger   logrus.FieldLogger
	interval time.Duration
	grace    time.Duration
}

// NewArchiveScheduler archives auctions once they have been closed for at least grace
func NewArchiveScheduler(flow businessflow.ArchiveFlow, clock utils.Clock, logger logrus.FieldLogger, interval, grace time.Duration) *ArchiveScheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if grace < 0 {
		grace = 0
	}
	return &ArchiveScheduler{
		flow:     flow,
		clock:    clock,
		logger:   logger.WithField("component", "archive_scheduler"),
		interval: interval,
		grace:    grace,
	}
}

// Start launches the archive loop in a background goroutine and returns a stop function
func (s *ArchiveScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	ticker := s.clock.NewTicker(s.interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.runOnce(ctx)
			}
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"grace":    s.grace.String(),
	}).Info("archive scheduler started")
	return func() {
		cancel()
		<-done
	}
}

func (s *ArchiveScheduler) runOnce(ctx context.Context) {
	result, err := s.flow.ArchiveClosedAuctions(ctx, s.grace)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WithField("error", err.Error()).Warn("archive pass failed")
		}
		return
	}
	for _, e := range result.Errors {
		s.logger.WithField("error", e).Warn("auction not archived")
	}
}
