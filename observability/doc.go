// Package observability wires OpenTelemetry metrics and traces. InitMeter
// and InitTracer install OTLP/HTTP exporters when an endpoint is
// configured; Metrics holds the instruments the gateway and mock backend
// record into, and a nil *Metrics records nothing. Spans cover proxied
// gateway requests and httpclient calls, with trace context carried in
// W3C traceparent headers.
package observability
