// Package logging builds the process-wide slog logger and provides the typed
// attribute helpers and standardized field keys used across the pipeline.
package logging
