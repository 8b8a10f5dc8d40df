// Package telemetry provides OpenTelemetry metrics exported in the Prometheus format, tracing spans and request ids.
package telemetry
