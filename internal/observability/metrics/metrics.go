package metrics

import "github.com/prometheus/client_golang/prometheus"

// AutomationMetrics exposes counters/histograms for the communication
// automation flows.
type AutomationMetrics struct {
	remindersSelected prometheus.Counter
	remindersSent     *prometheus.CounterVec
	surveyPrompts     prometheus.Counter
	surveyCompleted   prometheus.Counter
	gatewaySends      *prometheus.CounterVec
	inboundClaims     *prometheus.CounterVec
	webhookLatency    prometheus.Histogram
}

func NewAutomationMetrics(reg prometheus.Registerer) *AutomationMetrics {
	m := &AutomationMetrics{
		remindersSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cedin",
			Subsystem: "reminders",
			Name:      "selected_total",
			Help:      "Appointments selected by the eligibility scan",
		}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cedin",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminder dispatch outcomes",
		}, []string{"status"}),
		surveyPrompts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cedin",
			Subsystem: "nps",
			Name:      "prompts_total",
			Help:      "Initial survey prompts sent",
		}),
		surveyCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cedin",
			Subsystem: "nps",
			Name:      "completed_total",
			Help:      "Surveys that reached COMPLETED",
		}),
		gatewaySends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cedin",
			Subsystem: "messaging",
			Name:      "gateway_sends_total",
			Help:      "Outbound gateway sends",
		}, []string{"provider", "status"}),
		inboundClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cedin",
			Subsystem: "messaging",
			Name:      "inbound_claims_total",
			Help:      "Inbound events by the engine that claimed them",
		}, []string{"claimed_by"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cedin",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.remindersSelected, m.remindersSent, m.surveyPrompts,
		m.surveyCompleted, m.gatewaySends, m.inboundClaims, m.webhookLatency)
	return m
}

func (m *AutomationMetrics) ObserveRemindersSelected(n int) {
	if m == nil {
		return
	}
	m.remindersSelected.Add(float64(n))
}

func (m *AutomationMetrics) ObserveReminderDispatch(status string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(status).Inc()
}

func (m *AutomationMetrics) ObserveSurveyPrompt() {
	if m == nil {
		return
	}
	m.surveyPrompts.Inc()
}

func (m *AutomationMetrics) ObserveSurveyCompleted() {
	if m == nil {
		return
	}
	m.surveyCompleted.Inc()
}

func (m *AutomationMetrics) ObserveGatewaySend(provider string, ok bool) {
	if m == nil {
		return
	}
	status := "error"
	if ok {
		status = "ok"
	}
	m.gatewaySends.WithLabelValues(provider, status).Inc()
}

func (m *AutomationMetrics) ObserveInboundClaim(claimedBy string) {
	if m == nil {
		return
	}
	m.inboundClaims.WithLabelValues(claimedBy).Inc()
}

func (m *AutomationMetrics) ObserveWebhookLatency(seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.Observe(seconds)
}
