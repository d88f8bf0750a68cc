package metrics

import "time"

type Metrics interface {
	// Business
	RecordOrderCommitted(operation, status string)
	RecordBookingConflict(operation string)
	RecordUseCaseExecution(useCaseName string, success bool, duration time.Duration)

	// Routing gateway
	RecordRoutingCall(outcome string, duration time.Duration)

	// Location cache
	RecordLocationUpdate(outcome string)
	AddLocationHistoryFlushed(records int)
	RecordFlushFailure()

	// Realtime hub
	SetHubSubscribers(n int)
	IncHubFramesDropped(reason string)

	// Infrastructure (HTTP)
	ObserveHTTPRequestDuration(method, path, statusCode string, duration float64)
}
