// Package llm wraps an OpenAI-compatible chat completion API with JSON-only
// prompting, transient-failure retries with capped exponential backoff, and
// recovery parsing for malformed model output.
package llm
