package app

import (
	"errors"

	"github.com/calehh/dao-app/tx"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	txs        *prometheus.CounterVec
	finalized  prometheus.Counter
	executions *prometheus.CounterVec
	height     prometheus.Gauge
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		txs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs",
				Help:      "Number of delivered txs by type and result",
			},
			[]string{"type", "result"},
		),
		finalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_finalized",
			Help:      "Number of finalized proposals",
		}),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions",
				Help:      "Number of executed proposals, split by whether an external action ran",
			},
			[]string{"invoked"},
		),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "height",
			Help:      "Last finalized block height",
		}),
	}
	err := errors.Join(
		registerer.Register(m.txs),
		registerer.Register(m.finalized),
		registerer.Register(m.executions),
		registerer.Register(m.height),
	)
	return m, err
}

func (m *metrics) markTx(tp tx.DAOTxType, code uint32) {
	result := "ok"
	if code != 0 {
		result = "fail"
	}
	m.txs.WithLabelValues(tp.String(), result).Inc()
	if code != 0 {
		return
	}
	switch tp {
	case tx.DAOTxTypeFinalize:
		m.finalized.Inc()
	}
}

func (m *metrics) markExecuted(invoked bool) {
	label := "false"
	if invoked {
		label = "true"
	}
	m.executions.WithLabelValues(label).Inc()
}
