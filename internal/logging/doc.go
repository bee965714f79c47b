// Package logging centralizes slog handler construction and the structured
// field conventions used across the pipeline.
//
// Loggers are always injected; no package keeps a module-level default. The
// console handler renders human-oriented single-line records, the JSON handler
// emits machine-parseable output, and ContextFields/WithContext stamp episode,
// level, language, stage, and correlation attributes derived from context.
package logging
