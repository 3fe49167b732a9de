// Package metrics owns the Prometheus collectors shared by every local data
// manager. All methods are safe to call on a nil *Collectors so managers built
// in tests or tools can run without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "localdata"

// Lookup results.
const (
	LookupMemory = "memory"
	LookupDisk   = "disk"
	LookupAbsent = "absent"
	LookupError  = "error"
)

// Fetch results.
const (
	FetchOK      = "ok"
	FetchSkipped = "skipped"
	FetchOffline = "offline"
	FetchError   = "error"
)

// Store/write results.
const (
	StoreAccepted = "accepted"
	StoreIgnored  = "ignored"
	WriteOK       = "ok"
	WriteError    = "error"
)

// Collectors groups the per-kind counters and gauges.
type Collectors struct {
	lookups     *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	stores      *prometheus.CounterVec
	writes      *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

// NewCollectors creates the collectors and registers them on reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache slot resolutions by source.",
		}, []string{"kind", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Refresh decisions and caller-supplied fetch outcomes.",
		}, []string{"kind", "result"}),
		stores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stores_total",
			Help:      "Store calls per object, split by whether the entry was applied.",
		}, []string{"kind", "result"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disk_writes_total",
			Help:      "Write-behind persistence attempts.",
		}, []string{"kind", "result"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live subscriptions currently attached.",
		}, []string{"kind"}),
	}

	for _, collector := range []prometheus.Collector{c.lookups, c.fetches, c.stores, c.writes, c.subscribers} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) ObserveLookup(kind, result string) {
	if c == nil {
		return
	}
	c.lookups.WithLabelValues(kind, result).Inc()
}

func (c *Collectors) ObserveFetch(kind, result string) {
	if c == nil {
		return
	}
	c.fetches.WithLabelValues(kind, result).Inc()
}

func (c *Collectors) ObserveStore(kind, result string) {
	if c == nil {
		return
	}
	c.stores.WithLabelValues(kind, result).Inc()
}

func (c *Collectors) ObserveWrite(kind, result string) {
	if c == nil {
		return
	}
	c.writes.WithLabelValues(kind, result).Inc()
}

// SubscriberAdded/SubscriberRemoved track the live subscription gauge.
func (c *Collectors) SubscriberAdded(kind string) {
	if c == nil {
		return
	}
	c.subscribers.WithLabelValues(kind).Inc()
}

func (c *Collectors) SubscriberRemoved(kind string) {
	if c == nil {
		return
	}
	c.subscribers.WithLabelValues(kind).Dec()
}
