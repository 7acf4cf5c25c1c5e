// Package otel bridges coordinator metrics into an OpenTelemetry meter.
//
// [NewOTelExporter] registers observable instruments for every counter
// and histogram bucket; values are read from a snapshot during each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own a MeterProvider — callers supply the meter and its reader.
//   - Mutate coordinator state.
package otel
