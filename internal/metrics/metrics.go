// Package metrics defines all Prometheus metrics for vrfyd and proxymapd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	vrfyNamespace     = "verigate_vrfy"
	proxymapNamespace = "verigate_proxymap"
)

// --- Verification cache metrics ---

var (
	// VrfyQueries counts QUERY requests by reported address status.
	VrfyQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: vrfyNamespace,
		Name:      "queries_total",
		Help:      "Total VRFY_REQ_QUERY requests, by resulting address status.",
	}, []string{"status"})

	// VrfyUpdates counts UPDATE requests by outcome.
	VrfyUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: vrfyNamespace,
		Name:      "updates_total",
		Help:      "Total VRFY_REQ_UPDATE requests, by outcome (applied, protected, bad).",
	}, []string{"outcome"})

	// VrfyProbesSubmitted counts probe submission attempts by result.
	VrfyProbesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: vrfyNamespace,
		Name:      "probes_submitted_total",
		Help:      "Total probe submission attempts, by result (queued, failed).",
	}, []string{"result"})

	// VrfyCacheEntries is a gauge of entries currently held in the backing
	// table. vrfyd sets it only when the backing table is a MemTable.
	VrfyCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: vrfyNamespace,
		Name:      "cache_entries",
		Help:      "Current number of address entries in the backing table.",
	})

	// VrfyParseFailures counts stored entries that failed to parse.
	VrfyParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: vrfyNamespace,
		Name:      "entry_parse_failures_total",
		Help:      "Total stored entries that failed to parse and were treated as missing.",
	})

	// VrfyRequestDuration tracks request handling latency by request name.
	VrfyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: vrfyNamespace,
		Name:      "request_duration_seconds",
		Help:      "VRFY request handling duration in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"request"})
)

// --- Table-proxy metrics ---

var (
	// ProxyRequests counts OPEN/LOOKUP requests by reply status.
	ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: proxymapNamespace,
		Name:      "requests_total",
		Help:      "Total proxy requests, by request name and reply status.",
	}, []string{"request", "status"})

	// ProxyHandlesOpen is a gauge of open backing-table handles.
	ProxyHandlesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: proxymapNamespace,
		Name:      "handles_open",
		Help:      "Current number of open backing-table handles.",
	})

	// ProxyHandleOpens counts table open operations.
	ProxyHandleOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: proxymapNamespace,
		Name:      "handle_opens_total",
		Help:      "Total backing-table open operations, by result (new, reused, failed).",
	}, []string{"result"})

	// ProxyDenied counts requests denied by the allow-list.
	ProxyDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: proxymapNamespace,
		Name:      "denied_total",
		Help:      "Total proxy requests denied by the allow-list.",
	})

	// ProxyRestarts counts self-restarts triggered by a changed backing table.
	ProxyRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: proxymapNamespace,
		Name:      "self_restarts_total",
		Help:      "Total times the proxy exited because a backing table changed on disk.",
	})

	// ProxyRequestDuration tracks request handling latency by request name.
	ProxyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: proxymapNamespace,
		Name:      "request_duration_seconds",
		Help:      "Proxy request handling duration in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"request"})
)
