// Package metrics defines the Prometheus collectors exported by streamflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/savid/streamflow/internal/m3u"
)

// PlaylistLoads counts playlist loads by result (success, failure).
var PlaylistLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamflow_playlist_loads_total",
	Help: "Number of playlist loads",
}, []string{"result"})

// PlaylistChannels is the channel count of the current playlist.
var PlaylistChannels = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "streamflow_playlist_channels",
	Help: "Number of channels in the current playlist",
})

// PlaylistGroups is the group count of the current playlist.
var PlaylistGroups = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "streamflow_playlist_groups",
	Help: "Number of groups in the current playlist",
})

// SkippedEntries counts input the parser skipped, by reason.
var SkippedEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamflow_parse_skipped_total",
	Help: "Number of playlist entries skipped while parsing",
}, []string{"reason"})

// SourceFetchDuration observes how long reading a single source took, by kind
// (http, file, cache).
var SourceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "streamflow_source_fetch_duration_seconds",
	Help:    "Time spent reading playlist sources",
	Buckets: prometheus.DefBuckets,
}, []string{"kind"})

// HTTPRequests counts API requests by method and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamflow_http_requests_total",
	Help: "Number of HTTP requests served",
}, []string{"method", "code"})

// ObserveParse records the skip counters of a parse call.
func ObserveParse(stats m3u.Stats) {
	SkippedEntries.WithLabelValues("malformed").Add(float64(stats.MalformedInfo))
	SkippedEntries.WithLabelValues("dropped").Add(float64(stats.Dropped))
	SkippedEntries.WithLabelValues("orphan_url").Add(float64(stats.OrphanURLLines))
}

// ObservePlaylist records the shape of a newly published playlist.
func ObservePlaylist(channels, groups int) {
	PlaylistLoads.WithLabelValues("success").Inc()
	PlaylistChannels.Set(float64(channels))
	PlaylistGroups.Set(float64(groups))
}

// ObserveLoadFailure records a failed playlist load.
func ObserveLoadFailure() {
	PlaylistLoads.WithLabelValues("failure").Inc()
}
