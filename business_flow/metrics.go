package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bidMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_bid_mutations_total",
			Help: "Carrier bid mutations by action and result",
		},
		[]string{"action", "result"},
	)

	auctionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_auctions_closed_total",
			Help: "Auctions closed by the award engine, by outcome",
		},
		[]string{"outcome"},
	)

	engineClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freight_engine_claim_conflicts_total",
			Help: "Closing claims lost to another engine worker",
		},
	)

	engineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_engine_failures_total",
			Help: "Award engine failures by reason",
		},
		[]string{"reason"},
	)

	archiveResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_archive_auctions_total",
			Help: "Auctions processed by the archive pipeline, by result",
		},
		[]string{"result"},
	)

	archiveMirrorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freight_archive_mirror_failures_total",
			Help: "Archive records that could not be copied to the mirror store",
		},
	)
)
