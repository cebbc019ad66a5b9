//Package metrics exposes the miner's throughput counters over a Prometheus
//endpoint. Purely optional: the pipeline runs identically without it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//Metrics holds the instruments the orchestrator updates.
type Metrics struct {
	registry *prometheus.Registry

	//HashRate is the sampled throughput in lanes finalized per second.
	HashRate prometheus.Gauge
	//LanesFinalized counts lanes whose final digest was produced.
	LanesFinalized prometheus.Counter
	//Batches counts completed batches.
	Batches prometheus.Counter
	//MatchesFound counts digests that got below the target.
	MatchesFound prometheus.Counter
}

//New creates and registers the miner instruments on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HashRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rxminer",
			Name:      "hash_rate",
			Help:      "Sampled throughput in lanes finalized per second",
		}),
		LanesFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rxminer",
			Name:      "lanes_finalized_total",
			Help:      "Lanes whose final digest was produced",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rxminer",
			Name:      "batches_total",
			Help:      "Completed batches",
		}),
		MatchesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rxminer",
			Name:      "matches_found_total",
			Help:      "Digests that satisfied the target",
		}),
	}
	m.registry.MustRegister(m.HashRate, m.LanesFinalized, m.Batches, m.MatchesFound)
	return m
}

//Serve blocks serving the metrics endpoint on addr.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
