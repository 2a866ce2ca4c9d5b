package monitor

type MetricTag string

const (
	SuccessfulQueryDurationTag MetricTag = "successful_queries_duration"
	FailureQueryDurationTag    MetricTag = "failure_queries_duration"
	HttpRequestDurationTag     MetricTag = "requests_duration_seconds"
	// Settlements:
	SettlementsCounterTag MetricTag = "settlements_counter"
	// Dispatcher retries
	DispatcherRetryExhaustedCounterTag MetricTag = "dispatcher_retry_exhausted_counter"
	DispatcherTaskInFlightGaugeTag     MetricTag = "dispatcher_task_in_flight_gauge"
	// Escrow adapter requests
	EscrowAdapterRequestDurationTag MetricTag = "escrow_adapter_request_duration_seconds"
	EscrowAdapterRequestsTotalTag   MetricTag = "escrow_adapter_requests_total"

	// Connection pool gauges (real-time state)
	DBOpenConnectionsTag    MetricTag = "open_connections"
	DBInUseConnectionsTag   MetricTag = "in_use_connections"
	DBIdleConnectionsTag    MetricTag = "idle_connections"
	DBMaxOpenConnectionsTag MetricTag = "max_open_connections"

	// Connection pool counters (cumulative)
	DBWaitCountTotalTag           MetricTag = "wait_count_total"
	DBWaitDurationSecondsTotalTag MetricTag = "wait_duration_seconds_total"
	DBMaxIdleClosedTotalTag       MetricTag = "max_idle_closed_total"
	DBMaxIdleTimeClosedTotalTag   MetricTag = "max_idle_time_closed_total"
	DBMaxLifetimeClosedTotalTag   MetricTag = "max_lifetime_closed_total"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		SuccessfulQueryDurationTag,
		FailureQueryDurationTag,
		HttpRequestDurationTag,
		SettlementsCounterTag,
		DispatcherRetryExhaustedCounterTag,
		EscrowAdapterRequestDurationTag,
		EscrowAdapterRequestsTotalTag,

		DBOpenConnectionsTag,
		DBInUseConnectionsTag,
		DBIdleConnectionsTag,
		DBMaxOpenConnectionsTag,
		DBWaitCountTotalTag,
		DBWaitDurationSecondsTotalTag,
		DBMaxIdleClosedTotalTag,
		DBMaxIdleTimeClosedTotalTag,
		DBMaxLifetimeClosedTotalTag,
	}
}
