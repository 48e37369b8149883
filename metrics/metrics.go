// Package metrics exposes Prometheus metrics for the registry service on a
// dedicated listener.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claimable/account-registry-backend/interfaces"
)

// Metrics holds the registry's Prometheus collectors.
type Metrics struct {
	AccountsCreated      prometheus.Counter
	ClaimsSucceeded      prometheus.Counter
	ClaimsRejected       prometheus.Counter
	SignatureChecks      prometheus.Counter
	SignerUpdates        prometheus.Counter
	TransactionsExecuted prometheus.Counter
	RequestsRejected     *prometheus.CounterVec
}

// New creates and registers all collectors under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_created_total",
			Help:      "Total number of account instances deployed.",
		}),
		ClaimsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_succeeded_total",
			Help:      "Total number of successful account claims.",
		}),
		ClaimsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_rejected_total",
			Help:      "Total number of rejected account claims.",
		}),
		SignatureChecks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_checks_total",
			Help:      "Total number of registry signature validation calls.",
		}),
		SignerUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signer_updates_total",
			Help:      "Total number of signer configuration updates.",
		}),
		TransactionsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_executed_total",
			Help:      "Total number of owner-initiated account calls.",
		}),
		RequestsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Total number of rejected API requests by reason.",
		}, []string{"reason"}),
	}
}

// TransactionExecuted implements interfaces.CallSink, counting account calls.
func (m *Metrics) TransactionExecuted(ev interfaces.TransactionExecutedEvent) {
	m.TransactionsExecuted.Inc()
}

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{Addr: addr, Handler: mux},
	}
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
