package monitor

import "github.com/prometheus/client_golang/prometheus"

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HttpRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "coordinator", Subsystem: "http", Name: string(HttpRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method", "tenant_name"},
	),
	SuccessfulQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "coordinator", Subsystem: "db", Name: string(SuccessfulQueryDurationTag),
		Help: "Successful DB query durations",
	},
		[]string{"query_type"},
	),
	FailureQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "coordinator", Subsystem: "db", Name: string(FailureQueryDurationTag),
		Help: "Failure DB query durations",
	},
		[]string{"query_type"},
	),
	EscrowAdapterRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "coordinator", Subsystem: "escrow", Name: string(EscrowAdapterRequestDurationTag),
		Help: "EscrowAdapter backend request durations",
	},
		EscrowLabelNames,
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{
	DispatcherRetryExhaustedCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "coordinator", Subsystem: "dispatcher", Name: string(DispatcherRetryExhaustedCounterTag),
		Help: "A counter of settlement jobs that exhausted their retry budget",
	}),
}

var HistogramVecMetrics map[MetricTag]prometheus.HistogramVec

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	SettlementsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coordinator", Subsystem: "business", Name: string(SettlementsCounterTag),
		Help: "Settlements Counter",
	},
		[]string{"escrow_backend", "outcome", "tenant_name"},
	),
	EscrowAdapterRequestsTotalTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coordinator", Subsystem: "escrow", Name: string(EscrowAdapterRequestsTotalTag),
		Help: "Total number of EscrowAdapter backend requests",
	},
		EscrowLabelNames,
	),
}
