// Package metrics exposes the process's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts handled HTTP requests by route, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kharcha_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"path", "method", "status"})

	// AskActions counts dispatched operations by resolved action name.
	AskActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kharcha_ask_actions_total",
		Help: "Total ask requests dispatched, by resolved action.",
	}, []string{"action"})

	// ClassifierErrors counts failed classifier calls.
	ClassifierErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kharcha_classifier_errors_total",
		Help: "Total intent classifier call failures.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
