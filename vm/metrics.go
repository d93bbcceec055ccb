// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	blocksCommitted prometheus.Counter
	blockMismatches prometheus.Counter
	txResults       *prometheus.CounterVec
	feesCollected   prometheus.Counter
	mempoolSize     prometheus.Gauge
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocksCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_committed",
			Help:      "Number of blocks committed",
		}),
		blockMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_mismatches",
			Help:      "Number of finalize requests for a block this node did not execute",
		}),
		txResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_results",
			Help:      "Number of committed transitions by result",
		}, []string{"result"}),
		feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_collected",
			Help:      "Credits collected as fees by committed blocks",
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mempool_size",
			Help:      "Number of transitions waiting in the mempool",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.blocksCommitted),
		registerer.Register(m.blockMismatches),
		registerer.Register(m.txResults),
		registerer.Register(m.feesCollected),
		registerer.Register(m.mempoolSize),
	)
	return m, errs.Err
}

func (m *metrics) committed(blk *Block, mempoolSize int) {
	m.blocksCommitted.Inc()
	for _, tx := range blk.Txs {
		m.txResults.WithLabelValues(tx.Tag.String()).Inc()
	}
	if total, err := blk.Fees.Total(); err == nil {
		m.feesCollected.Add(float64(total))
	}
	m.mempoolSize.Set(float64(mempoolSize))
}
