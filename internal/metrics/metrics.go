package metrics

import "time"

// RPCMetrics provides observability for the RPC dispatcher and its
// transport. Implementations can collect metrics about dispatched
// procedures, connection lifecycle, and auth outcomes. This interface is
// optional: pass nil to disable metrics collection with zero overhead.
type RPCMetrics interface {
	// RecordRequest records a completed procedure call: its name, whether
	// it returned OK or an error, and how long it took.
	RecordRequest(procedure string, status string, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart(procedure string)

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd(procedure string)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections
	// counter, recorded when the shutdown timeout expires with connections
	// still open.
	RecordConnectionForceClosed()

	// RecordAuthOutcome records the result of a SASL negotiation step.
	RecordAuthOutcome(mechanism string, outcome string)

	// RecordThrottled records an AUTH_SASL_INIT rejected by the throttle
	// before it reached the SASL mechanism.
	RecordThrottled(remoteAddr string)
}
