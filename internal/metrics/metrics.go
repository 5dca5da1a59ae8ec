// Package metrics exposes Prometheus instrumentation for the state engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Mutations
	Toggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_toggles_total",
		Help: "The total number of membership toggles applied locally",
	}, []string{"store", "relation"})

	Creates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_creates_total",
		Help: "The total number of entities created locally",
	}, []string{"store", "kind"})

	Deletes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_deletes_total",
		Help: "The total number of entities deleted locally",
	}, []string{"store", "kind"})

	// Reconciliation
	SyncFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_sync_failures_total",
		Help: "The total number of background remote calls that failed",
	}, []string{"store", "op"})

	ReconcileOverrides = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_reconcile_overrides_total",
		Help: "The total number of local guesses overwritten by remote results",
	}, []string{"store", "relation"})

	StaleResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_stale_responses_total",
		Help: "The total number of reconciliation responses discarded as stale",
	}, []string{"store"})

	Resyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_resyncs_total",
		Help: "The total number of full resync operations",
	}, []string{"store", "status"})

	// Persistence
	LoadRecoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_load_recoveries_total",
		Help: "The total number of persisted blobs discarded as unreadable at load",
	}, []string{"store", "reason"})

	BlobWriteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_blob_write_errors_total",
		Help: "The total number of write-through failures to the blob store",
	}, []string{"store"})

	// Change feed
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_events_published_total",
		Help: "The total number of change events published to the feed",
	}, []string{"store"})

	PublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satchel_publish_errors_total",
		Help: "The total number of change feed publish errors",
	}, []string{"store"})
)

func init() {
	prometheus.MustRegister(Toggles)
	prometheus.MustRegister(Creates)
	prometheus.MustRegister(Deletes)
	prometheus.MustRegister(SyncFailures)
	prometheus.MustRegister(ReconcileOverrides)
	prometheus.MustRegister(StaleResponses)
	prometheus.MustRegister(Resyncs)
	prometheus.MustRegister(LoadRecoveries)
	prometheus.MustRegister(BlobWriteErrors)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(PublishErrors)
}
