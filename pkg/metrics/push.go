package metrics

import "github.com/prometheus/client_golang/prometheus"

// PushMetrics tracks notification dispatch outcomes.
type PushMetrics struct {
	dispatch *prometheus.CounterVec
	delivery *prometheus.CounterVec
	pruned   prometheus.Counter
	fanout   prometheus.Counter
}

func NewPushMetrics(reg prometheus.Registerer) *PushMetrics {
	if reg == nil {
		return &PushMetrics{}
	}
	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_dispatch_total",
		Help: "Push notification requests by terminal status.",
	}, []string{"status"})
	delivery := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_delivery_total",
		Help: "Per-token push deliveries by result.",
	}, []string{"result"})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_tokens_pruned_total",
		Help: "Device tokens removed after the relay reported them invalid.",
	})
	fanout := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_bulk_fanout_total",
		Help: "Individual requests created by bulk fan-out.",
	})
	reg.MustRegister(dispatch, delivery, pruned, fanout)
	return &PushMetrics{dispatch: dispatch, delivery: delivery, pruned: pruned, fanout: fanout}
}

// IncDispatch counts a request reaching status.
func (m *PushMetrics) IncDispatch(status string) {
	if m == nil || m.dispatch == nil {
		return
	}
	m.dispatch.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *PushMetrics) ObserveDelivery(success bool) {
	if m == nil || m.delivery == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.delivery.WithLabelValues(result).Inc()
}

func (m *PushMetrics) IncPruned() {
	if m == nil || m.pruned == nil {
		return
	}
	m.pruned.Inc()
}

func (m *PushMetrics) AddFanout(n int) {
	if m == nil || m.fanout == nil || n <= 0 {
		return
	}
	m.fanout.Add(float64(n))
}
