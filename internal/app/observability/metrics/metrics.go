package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	HTTPRequestDuration    metric.Float64Histogram
	AuthRequestsTotal      metric.Int64Counter
	NearbyQueriesTotal     metric.Int64Counter
	NearbyPageSize         metric.Int64Histogram
	RankTransactionsTotal  metric.Int64Counter
	DBQueryDurationSeconds metric.Float64Histogram
	DBQueryErrorsTotal     metric.Int64Counter
	TxRollbacksTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once, against whatever MeterProvider
// is globally registered at that moment. Call it after the providers are set
// up so the instruments are exported.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("withbaby")
		m := &AppMetrics{}

		m.HTTPRequestsTotal = must(meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		))
		m.HTTPRequestDuration = must(meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		))
		m.AuthRequestsTotal = must(meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of sign-up and sign-in requests"),
			metric.WithUnit("{request}"),
		))
		m.NearbyQueriesTotal = must(meter.Int64Counter(
			"nearby_queries_total",
			metric.WithDescription("Total number of nearby queries by entity kind"),
			metric.WithUnit("{query}"),
		))
		m.NearbyPageSize = must(meter.Int64Histogram(
			"nearby_page_size",
			metric.WithDescription("Number of rows returned per nearby page"),
			metric.WithUnit("{row}"),
		))
		m.RankTransactionsTotal = must(meter.Int64Counter(
			"rank_transactions_total",
			metric.WithDescription("Committed rank aggregation transactions by branch"),
			metric.WithUnit("{transaction}"),
		))
		m.DBQueryDurationSeconds = must(meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database transactions in seconds"),
			metric.WithUnit("s"),
		))
		m.DBQueryErrorsTotal = must(meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of failed database transactions"),
			metric.WithUnit("{error}"),
		))
		m.TxRollbacksTotal = must(meter.Int64Counter(
			"db_tx_rollbacks_total",
			metric.WithDescription("Total number of rolled back transactions"),
			metric.WithUnit("{transaction}"),
		))

		appMetrics = m
	})
}

// Get returns the instruments, creating them on first use. Before the
// exporters are registered the global provider is a no-op, so tests can
// record freely.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

func must[T any](instrument T, err error) T {
	if err != nil {
		log.Fatalf("Metrics: failed to create instrument: %v", err)
	}
	return instrument
}
