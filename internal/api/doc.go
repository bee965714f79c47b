// Package api exposes the summarization service over HTTP. It serves
// episode registration, summary requests, status snapshots, and
// notification administration, guarding every route except the health
// probe with a bearer token when one is configured.
//
// Handlers translate service errors into status codes: validation
// failures map to 400, missing episodes or summaries to 404, and
// everything else to 500 with the sanitized message from the error
// details.
package api
