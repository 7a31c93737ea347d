package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	received  prometheus.Counter
	dropped   *prometheus.CounterVec
	replies   *prometheus.CounterVec
	exhausted prometheus.Counter
	swept     prometheus.Counter
	leases    prometheus.GaugeFunc
	poolSize  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, activeLeases func() float64) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "leased_packets_received_total",
			Help: "Datagrams received on the DHCP socket.",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leased_packets_dropped_total",
			Help: "Datagrams dropped without a reply, by reason.",
		}, []string{"reason"}),
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leased_replies_total",
			Help: "Replies sent, by DHCP message type.",
		}, []string{"type"}),
		exhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "leased_pool_exhausted_total",
			Help: "DISCOVERs that found no free address.",
		}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Name: "leased_leases_expired_total",
			Help: "Leases freed by expiry sweeps.",
		}),
		leases: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "leased_leases_active",
			Help: "Live entries in the lease table.",
		}, activeLeases),
		poolSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "leased_pool_size",
			Help: "Number of addresses in the configured pool.",
		}),
	}
}
