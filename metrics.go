package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tableTransfersTotal counts table transfers by result (success, failure).
	tableTransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oasis_table_transfers_total",
		Help: "Total number of table transfers by result",
	}, []string{"result"})

	// rowsCopiedTotal counts rows committed to destination tables.
	rowsCopiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oasis_rows_copied_total",
		Help: "Total number of rows copied to destination tables",
	})

	// indexFailuresTotal counts secondary indexes that could not be created.
	indexFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oasis_index_failures_total",
		Help: "Total number of secondary indexes skipped after a creation error",
	})

	tableTransferSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oasis_table_transfer_seconds",
		Help:    "Duration of single table transfers in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// backupCycleSeconds measures whole backup cycles, labelled by trigger
	// (interval, cron, manual).
	backupCycleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oasis_backup_cycle_seconds",
		Help:    "Duration of backup cycles in seconds",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"trigger"})

	// backupCyclesTotal counts finished cycles by outcome (complete, partial).
	backupCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oasis_backup_cycles_total",
		Help: "Total number of backup cycles by outcome",
	}, []string{"outcome"})

	schedulerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oasis_scheduler_running",
		Help: "1 while a backup schedule is armed",
	})
)
