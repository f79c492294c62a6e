package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"quickex/core/events"
)

type eventMetrics struct {
	transitions *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed QuickEx events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "quickex",
				Subsystem: "events",
				Name:      "total",
				Help:      "Count of committed events segmented by type and token.",
			}, []string{"type", "token"}),
		}
		prometheus.MustRegister(eventRegistry.transitions)
	})
	return eventRegistry
}

// Emit implements events.Emitter so the registry can sit in the node's
// emitter fan-out.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	token := ""
	if rendered := evt.Event(); rendered != nil {
		token = rendered.Attributes["token"]
	}
	m.transitions.WithLabelValues(evt.EventType(), strings.ToUpper(strings.TrimSpace(token))).Inc()
}
