package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentmarket/coordinator/internal/logging"
)

type FuncMetricType string

const (
	FuncGaugeType   FuncMetricType = "gauge"
	FuncCounterType FuncMetricType = "counter"
)

// FuncMetricOptions describes a metric whose value is read on every scrape
// by calling Function, rather than pushed by the application.
type FuncMetricOptions struct {
	Namespace  string
	Subservice string
	Name       string
	Help       string
	Labels     map[string]string
	Function   func() float64
}

type prometheusClient struct {
	httpHandler http.Handler
	registry    *prometheus.Registry
}

func (prometheusClient) GetMetricType() MetricType {
	return MetricTypePrometheus
}

func (p *prometheusClient) GetMetricHttpHandler() http.Handler {
	return p.httpHandler
}

func (p *prometheusClient) MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) {
	SummaryVecMetrics[HttpRequestDurationTag].With(prometheus.Labels{
		"status":      labels.Status,
		"route":       labels.Route,
		"method":      labels.Method,
		"tenant_name": labels.TenantName,
	}).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorDBQueryDuration(duration time.Duration, tag MetricTag, labels DBQueryLabels) {
	summary := SummaryVecMetrics[tag]
	summary.With(prometheus.Labels{
		"query_type": labels.QueryType,
	}).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) {
	summary := SummaryVecMetrics[tag]
	summary.With(labels).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorCounters(tag MetricTag, labels map[string]string) {
	if len(labels) != 0 {
		if counterVecMetric, ok := CounterVecMetrics[tag]; ok {
			counterVecMetric.With(labels).Inc()
		} else {
			logging.Errorf("metric not registered in Prometheus CounterVecMetrics: %s", tag)
		}
	} else {
		if counterMetric, ok := CounterMetrics[tag]; ok {
			counterMetric.Inc()
		} else {
			logging.Errorf("metric not registered in Prometheus CounterMetrics: %s", tag)
		}
	}
}

func (p *prometheusClient) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) {
	histogram := HistogramVecMetrics[tag]
	histogram.With(labels).Observe(value)
}

// RegisterFunctionMetric registers a metric whose value is computed on demand
// by opts.Function every time the /metrics endpoint is scraped.
func (p *prometheusClient) RegisterFunctionMetric(metricType FuncMetricType, opts FuncMetricOptions) {
	switch metricType {
	case FuncGaugeType:
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subservice,
			Name:        opts.Name,
			Help:        opts.Help,
			ConstLabels: opts.Labels,
		}, opts.Function)
		p.registry.MustRegister(collector)
	case FuncCounterType:
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subservice,
			Name:        opts.Name,
			Help:        opts.Help,
			ConstLabels: opts.Labels,
		}, opts.Function)
		p.registry.MustRegister(collector)
	default:
		logging.Errorf("Error Registering Function %s metric %s: unsupported metric type", metricType, opts.Name)
	}
}

func NewPrometheusClient() (*prometheusClient, error) {
	metricsRegistry := prometheus.NewRegistry()

	var metricTag MetricTag
	for _, tag := range metricTag.ListAll() {
		if summaryVecMetric, ok := SummaryVecMetrics[tag]; ok {
			metricsRegistry.MustRegister(summaryVecMetric)
		} else if counterMetric, ok := CounterMetrics[tag]; ok {
			metricsRegistry.MustRegister(counterMetric)
		} else if counterVecMetric, ok := CounterVecMetrics[tag]; ok {
			metricsRegistry.MustRegister(counterVecMetric)
		} else {
			return nil, fmt.Errorf("metric not registered in prometheus metrics: %s", tag)
		}
	}

	return &prometheusClient{
		httpHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}),
		registry:    metricsRegistry,
	}, nil
}

// newPrometheusClient returns a prometheusClient backed by a fresh, empty
// registry — used where tests only care about function metrics and would
// otherwise collide with the statically registered ones.
func newPrometheusClient() (*prometheusClient, error) {
	metricsRegistry := prometheus.NewRegistry()
	return &prometheusClient{
		httpHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}),
		registry:    metricsRegistry,
	}, nil
}

// Ensuring that prometheusClient is implementing MonitorClient interface
var _ MonitorClient = (*prometheusClient)(nil)
