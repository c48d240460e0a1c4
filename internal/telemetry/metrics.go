package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/callsight/console"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Gateway metrics
	APIRequestsTotal      metric.Int64Counter
	APIRequestErrorsTotal metric.Int64Counter

	// Session metrics
	LoginAttemptsTotal   metric.Int64Counter
	LoginFailuresTotal   metric.Int64Counter
	LogoutTotal          metric.Int64Counter
	RefreshTotal         metric.Int64Counter
	RefreshFailuresTotal metric.Int64Counter

	// Console metrics
	PageRequestsTotal   metric.Int64Counter
	GuardRedirectsTotal metric.Int64Counter
	RequestDuration     metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Gateway metrics
	m.APIRequestsTotal, _ = meter.Int64Counter(
		"callsight.api.requests.total",
		metric.WithDescription("Total number of requests issued through the API gateway client"),
		metric.WithUnit("{request}"),
	)

	m.APIRequestErrorsTotal, _ = meter.Int64Counter(
		"callsight.api.request_errors.total",
		metric.WithDescription("Total number of transport-level API request failures"),
		metric.WithUnit("{error}"),
	)

	// Session metrics
	m.LoginAttemptsTotal, _ = meter.Int64Counter(
		"callsight.session.login_attempts.total",
		metric.WithDescription("Total number of login attempts"),
		metric.WithUnit("{attempt}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"callsight.session.login_failures.total",
		metric.WithDescription("Total number of failed login attempts"),
		metric.WithUnit("{failure}"),
	)

	m.LogoutTotal, _ = meter.Int64Counter(
		"callsight.session.logouts.total",
		metric.WithDescription("Total number of logouts"),
		metric.WithUnit("{logout}"),
	)

	m.RefreshTotal, _ = meter.Int64Counter(
		"callsight.session.refreshes.total",
		metric.WithDescription("Total number of background session refresh attempts"),
		metric.WithUnit("{refresh}"),
	)

	m.RefreshFailuresTotal, _ = meter.Int64Counter(
		"callsight.session.refresh_failures.total",
		metric.WithDescription("Total number of failed background session refreshes"),
		metric.WithUnit("{failure}"),
	)

	// Console metrics
	m.PageRequestsTotal, _ = meter.Int64Counter(
		"callsight.console.page_requests.total",
		metric.WithDescription("Total number of console page requests"),
		metric.WithUnit("{request}"),
	)

	m.GuardRedirectsTotal, _ = meter.Int64Counter(
		"callsight.console.guard_redirects.total",
		metric.WithDescription("Total number of navigations redirected by the route guard"),
		metric.WithUnit("{redirect}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"callsight.console.request.duration",
		metric.WithDescription("Duration of console HTTP requests"),
		metric.WithUnit("ms"),
	)

	return m
}
