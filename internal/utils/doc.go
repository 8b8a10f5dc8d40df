// Package utils provides helpers shared across the application:
// deterministic track file naming, MIME type to extension mapping,
// file system checks, and content type validation for HTTP logging.
package utils
