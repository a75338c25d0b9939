// Package metrics exposes the gateway's Prometheus instrumentation. Counters
// are package-level so the session and transport layers can record events
// without carrying a registry around.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_login_success_total",
		Help: "Successful console logins.",
	})
	LoginFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_login_failure_total",
		Help: "Rejected or failed console logins.",
	})
	RefreshSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_token_refresh_success_total",
		Help: "Successful access-token refreshes.",
	})
	RefreshFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_token_refresh_failure_total",
		Help: "Failed access-token refreshes (session torn down).",
	})
	RefreshSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_token_refresh_suppressed_total",
		Help: "Refresh calls rejected because another refresh was in flight.",
	})
	RetriedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_request_retry_total",
		Help: "Requests replayed after a 401 and a successful refresh.",
	})
	SilentLogouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_silent_logout_total",
		Help: "Sessions torn down by the interceptor after an unrecoverable 401.",
	})
)

// Handler serves the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
