package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAutomationMetricsObserve(t *testing.T) {
	m := NewAutomationMetrics(prometheus.NewRegistry())
	m.ObserveRemindersSelected(12)
	m.ObserveReminderDispatch("sent")
	m.ObserveReminderDispatch("failed")
	m.ObserveSurveyPrompt()
	m.ObserveSurveyCompleted()
	m.ObserveGatewaySend("template_api", true)
	m.ObserveGatewaySend("session", false)
	m.ObserveInboundClaim("nps")
	m.ObserveWebhookLatency(0.05)
}

func TestAutomationMetricsNilSafe(t *testing.T) {
	var m *AutomationMetrics
	m.ObserveRemindersSelected(1)
	m.ObserveReminderDispatch("sent")
	m.ObserveSurveyPrompt()
	m.ObserveSurveyCompleted()
	m.ObserveGatewaySend("template_api", true)
	m.ObserveInboundClaim("none")
	m.ObserveWebhookLatency(0.1)
}
