// Package otel exports the engine's in-process metrics as observable
// OpenTelemetry instruments.
package otel
