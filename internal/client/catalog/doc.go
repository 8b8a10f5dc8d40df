// Package catalog provides a Go client for the external catalogue and stream resolver service.
// It resolves short-lived direct media URLs for tracks (optionally pinned to a format tag),
// fetches display metadata over GraphQL with an LRU cache in front of it,
// and opens ranged reads of media streams.
// HTTP traffic goes through the shared transport chain with cookie-based authentication,
// header injection, and redacted debug logging.
package catalog
