// Package scheduler runs the recurring background work of the auction engine
package scheduler

import (
	"context"
	"time"

	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/sirupsen/logrus"
)

// AwardScheduler drives the award engine on a fixed tick
type AwardScheduler struct {
	flow     businessflow.AwardFlow
	clock    utils.Clock
	logger   logrus.FieldLogger
	interval time.Duration
}

func NewAwardScheduler(flow businessflow.AwardFlow, clock utils.Clock, logger logrus.FieldLogger, interval time.Duration) *AwardScheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &AwardScheduler{
		flow:     flow,
		clock:    clock,
		logger:   logger.WithField("component", "award_scheduler"),
		interval: interval,
	}
}

// Start launches the engine loop in a background goroutine and returns a stop
// function that waits for the current pass to finish
func (s *AwardScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	ticker := s.clock.NewTicker(s.interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.runOnce(ctx)
			}
		}
	}()

	s.logger.WithField("interval", s.interval.String()).Info("award scheduler started")
	return func() {
		cancel()
		<-done
		s.logger.Info("award scheduler stopped")
	}
}

func (s *AwardScheduler) runOnce(ctx context.Context) {
	result, err := s.flow.CloseDueAuctions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.WithField("error", err.Error()).Warn("award pass failed")
		return
	}
	if result.Awarded+result.Unawarded+result.Failed == 0 {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"awarded":   result.Awarded,
		"unawarded": result.Unawarded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("award pass finished")
}
