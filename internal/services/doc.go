// Package services defines shared utilities consumed by the summarization
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp episode IDs, summary levels, languages, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent persisted summary statuses and error messages.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
