package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Signing holds the counters of the signing workflow. A nil *Signing is valid
// and records nothing.
type Signing struct {
	payloadsSealed  *prometheus.CounterVec
	payloadsOpened  *prometheus.CounterVec
	stepFailures    *prometheus.CounterVec
	fieldCollisions prometheus.Counter
	publishes       *prometheus.CounterVec
}

// NewSigning creates the signing counters and registers them with reg.
func NewSigning(namespace string, reg prometheus.Registerer) (*Signing, error) {
	m := &Signing{
		payloadsSealed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_sealed_total",
			Help:      "Payloads sealed, by encryption mode.",
		}, []string{"mode"}),
		payloadsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_opened_total",
			Help:      "Payloads opened, by encryption mode and result.",
		}, []string{"mode", "result"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Steps that could not be replayed, by reason.",
		}, []string{"reason"}),
		fieldCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_collisions_total",
			Help:      "Overlay contributions ignored during merge.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_publishes_total",
			Help:      "Step publish attempts, by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.payloadsSealed, m.payloadsOpened, m.stepFailures, m.fieldCollisions, m.publishes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Signing) PayloadSealed(mode string) {
	if m == nil {
		return
	}
	m.payloadsSealed.WithLabelValues(mode).Inc()
}

func (m *Signing) PayloadOpened(mode string, err error) {
	if m == nil {
		return
	}
	m.payloadsOpened.WithLabelValues(mode, resultLabel(err)).Inc()
}

func (m *Signing) StepFailed(reason string) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(reason).Inc()
}

func (m *Signing) FieldCollisions(n int) {
	if m == nil || n == 0 {
		return
	}
	m.fieldCollisions.Add(float64(n))
}

func (m *Signing) Published(err error) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
