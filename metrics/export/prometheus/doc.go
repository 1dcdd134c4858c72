// Package prometheus exports the engine's in-process metrics as a
// client_golang collector and scrape handler.
package prometheus
