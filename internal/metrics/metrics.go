// Package metrics exposes the gateway's Prometheus counters and gauges,
// grounded on the original Python service's app/metrics/metrics.go use of
// prometheus_client and the prometheus/client_golang usage seen across the
// retrieved pack's chain-node manifests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome is the fixed set of terminal states an RFQ can reach, matching
// spec.md §6's rfqs_total status label values.
type Outcome string

const (
	QuoteSent          Outcome = "QUOTE_SENT"
	UnsupportedBase    Outcome = "UNSUPPORTED_BT"
	UnsupportedQuote   Outcome = "UNSUPPORTED_QT"
	LowQuoteBalance    Outcome = "LOW_QT_BALANCE"
	QuoterUnhandledExc Outcome = "QUOTER_UNHANDLED_EXC"
)

// Metrics bundles the counters and gauges the Quoter reports to on every
// RFQ.
type Metrics struct {
	RFQsTotal   *prometheus.CounterVec
	RFQsWaiting *prometheus.GaugeVec
}

// New constructs and registers the gateway's metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across test runs.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RFQsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfqs_total",
			Help: "Total RFQs processed, labeled by outcome.",
		}, []string{"chain_id", "solver", "base_token", "quote_token", "status"}),
		RFQsWaiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rfqs_waiting",
			Help: "RFQs currently queued awaiting a quote decision.",
		}, []string{"chain_id", "solver", "base_token", "quote_token"}),
	}
	reg.MustRegister(m.RFQsTotal, m.RFQsWaiting)
	return m
}

// Labels is the (chainId, solver, baseToken, quoteToken) tuple shared by
// both metric families for a single RFQ.
type Labels struct {
	ChainID    string
	Solver     string
	BaseToken  string
	QuoteToken string
}

func (m *Metrics) Record(l Labels, outcome Outcome) {
	m.RFQsTotal.WithLabelValues(l.ChainID, l.Solver, l.BaseToken, l.QuoteToken, string(outcome)).Inc()
}

func (m *Metrics) SetWaiting(l Labels, n float64) {
	m.RFQsWaiting.WithLabelValues(l.ChainID, l.Solver, l.BaseToken, l.QuoteToken).Set(n)
}
