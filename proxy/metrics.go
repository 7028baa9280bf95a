package proxy

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are the gateway counters served on /metrics.
type metrics struct {
	registry *prometheus.Registry

	chatRequests  prometheus.Counter
	chatFallbacks prometheus.Counter
	turnsDropped  prometheus.Counter
	embedRequests prometheus.Counter
	embedErrors   prometheus.Counter
	nodesImported prometheus.Counter
}

func newMetrics() *metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      name,
			Help:      help,
		})
	}

	m := &metrics{
		registry:      prometheus.NewRegistry(),
		chatRequests:  counter("chat_requests_total", "Chat requests answered."),
		chatFallbacks: counter("chat_fallbacks_total", "Chat requests answered with the fallback text."),
		turnsDropped:  counter("turns_dropped_total", "Oldest turns dropped to fit the context window."),
		embedRequests: counter("embed_requests_total", "Embedding requests received."),
		embedErrors:   counter("embed_errors_total", "Embedding requests that failed upstream."),
		nodesImported: counter("nodes_imported_total", "Nodes stored through POST /dag/nodes."),
	}
	m.registry.MustRegister(
		m.chatRequests, m.chatFallbacks, m.turnsDropped,
		m.embedRequests, m.embedErrors, m.nodesImported,
	)
	return m
}

// handler serves the registry in the Prometheus exposition format.
func (m *metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
