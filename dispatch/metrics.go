// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	landed   *prometheus.CounterVec
	rejected *prometheus.CounterVec
	failed   *prometheus.CounterVec
}

func newMetrics(namespace string, reg prometheus.Registerer) (*metrics, error) {
	labels := []string{"source", "type"}
	m := &metrics{
		landed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "landed",
			Help:      "Number of approved transactions that landed on chain",
		}, labels),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected",
			Help:      "Number of transactions rejected by the user",
		}, labels),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed",
			Help:      "Number of approved transactions that failed to dispatch",
		}, labels),
	}

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.landed),
		reg.Register(m.rejected),
		reg.Register(m.failed),
	)
	return m, errs.Err
}
