package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
)

// Metrics holds the Prometheus metrics of a single node.
type Metrics struct {
	MessagesReceived *prometheus.CounterVec
	MessagesRejected *prometheus.CounterVec
	SendErrors       prometheus.Counter
	Round            prometheus.Gauge
	CoinFlips        prometheus.Counter
	Decided          prometheus.Gauge
}

// NewMetrics registers the metrics of the given node with reg.
func NewMetrics(reg prometheus.Registerer, id benor.ID) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"node": id.String()}
	return &Metrics{
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "benor",
			Name:        "messages_received_total",
			Help:        "Number of protocol messages accepted by the node, by phase",
			ConstLabels: labels,
		}, []string{"phase"}),
		MessagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "benor",
			Name:        "messages_rejected_total",
			Help:        "Number of protocol messages rejected by the node, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "benor",
			Name:        "send_errors_total",
			Help:        "Number of messages that could not be delivered to a peer",
			ConstLabels: labels,
		}),
		Round: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "benor",
			Name:        "round",
			Help:        "Current round of the node",
			ConstLabels: labels,
		}),
		CoinFlips: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "benor",
			Name:        "coin_flips_total",
			Help:        "Number of rounds whose estimate was chosen by the coin",
			ConstLabels: labels,
		}),
		Decided: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "benor",
			Name:        "decided",
			Help:        "1 once the node has decided",
			ConstLabels: labels,
		}),
	}
}

// HandleEvent updates the metrics from a node event. It is a consensus.EventHandler.
func (m *Metrics) HandleEvent(event any) {
	switch e := event.(type) {
	case consensus.RoundEvent:
		m.Round.Set(float64(e.Round))
		if e.CoinFlipped {
			m.CoinFlips.Inc()
		}
	case consensus.DecideEvent:
		m.Decided.Set(1)
	}
}
