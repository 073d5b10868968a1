package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts session and adapter outcomes. A nil Recorder records
// nothing.
type Recorder struct {
	sessions      *prometheus.CounterVec
	charges       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	tokens        *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alex",
			Name:      "session_operations_total",
			Help:      "Session operations by operation and outcome code.",
		}, []string{"operation", "outcome"}),
		charges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alex",
			Name:      "payment_charges_total",
			Help:      "Payment gateway charges by currency and outcome.",
		}, []string{"currency", "outcome"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alex",
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alex",
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued by role.",
		}, []string{"role"}),
	}
}

func (r *Recorder) Session(operation, outcome string) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) Charge(currency string, err error) {
	if r == nil {
		return
	}
	r.charges.WithLabelValues(currency, outcome(err)).Inc()
}

func (r *Recorder) Notification(kind string, err error) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(kind, outcome(err)).Inc()
}

func (r *Recorder) TokenIssued(role string) {
	if r == nil {
		return
	}
	r.tokens.WithLabelValues(role).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
