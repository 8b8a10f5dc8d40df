// Package http provides custom HTTP transport utilities:
// debug logging of requests and responses with signed-URL redaction,
// and injection of client identification headers.
package http
