// Package metrics exposes the Prometheus metrics of the Soundcharts client.
// All collectors are defined in their own packages (client, quota,
// pagination, window) through promauto and land in the default registry.
//
// This package documents them and serves them over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry the handler reads from.
var Gatherer = prometheus.DefaultGatherer

// shutdownTimeout bounds graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - soundcharts_requests_total{endpoint, status} (Counter): Requests by resource path and HTTP status
//   - soundcharts_request_duration_seconds{endpoint} (Histogram): Request duration by resource path
//   - soundcharts_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client, only with max_retries > 0):
//   - soundcharts_retries_total{error_class} (Counter): Retry attempts by error class
//   - soundcharts_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - soundcharts_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Quota Metrics (pkg/quota):
//   - soundcharts_quota_remaining (Gauge): Last x-quota-remaining value
//   - soundcharts_quota_blocks_total (Counter): Requests blocked because the quota was critical
//   - soundcharts_quota_throttles_total (Counter): Requests delayed because the quota was low
//
// Pagination Metrics (pkg/pagination):
//   - soundcharts_pages_fetched_total{endpoint} (Counter): Listing pages fetched
//   - soundcharts_items_yielded_total{endpoint} (Counter): Listing items handed to consumers
//
// Window Metrics (pkg/window):
//   - soundcharts_windows_fetched_total{mode} (Counter): Windows fetched (range, latest, daily, monthly)
//   - soundcharts_backscan_hops_total (Counter): Earlier days tried by daily queries
//
// Example Prometheus Queries:
//
//   # Quota left
//   soundcharts_quota_remaining < 1000
//
//   # Request Error Rate
//   rate(soundcharts_errors_total[5m])
//
//   # Pages per windowed query
//   rate(soundcharts_pages_fetched_total[5m]) / rate(soundcharts_windows_fetched_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(soundcharts_request_duration_seconds_bucket[5m]))

// NewServeMux returns a mux serving /metrics and /health.
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Serve runs the metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info().Msg("Stopping metrics server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
