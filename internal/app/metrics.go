package app

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the service counters exported on /metrics.
type Metrics struct {
	evaluations *prometheus.CounterVec
	assessments *prometheus.CounterVec
	documents   *prometheus.CounterVec
	sessions    *prometheus.CounterVec
	decisions   prometheus.Counter
}

// NewMetrics registers the counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raise_evaluations_total",
				Help: "Decision path evaluations by terminal reached.",
			},
			[]string{"terminal", "risk"},
		),
		assessments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raise_assessments_total",
				Help: "Scored assessments by readiness level.",
			},
			[]string{"readiness"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raise_documents_rendered_total",
				Help: "Rendered documents by template.",
			},
			[]string{"template"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raise_sessions_total",
				Help: "Traversal session lifecycle events.",
			},
			[]string{"event"},
		),
		decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raise_decisions_logged_total",
			Help: "Decisions logged against project checkpoints.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.evaluations, m.assessments, m.documents, m.sessions, m.decisions)
	}
	return m
}

func (m *Metrics) evaluation(terminal, risk string) {
	if m == nil {
		return
	}
	if terminal == "" {
		terminal, risk = "incomplete", "none"
	}
	m.evaluations.WithLabelValues(terminal, risk).Inc()
}

func (m *Metrics) assessment(readiness string) {
	if m == nil {
		return
	}
	if readiness == "" {
		readiness = "none"
	}
	m.assessments.WithLabelValues(readiness).Inc()
}

func (m *Metrics) document(template string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(template).Inc()
}

func (m *Metrics) session(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}

func (m *Metrics) decision() {
	if m == nil {
		return
	}
	m.decisions.Inc()
}
