// Package rest exposes the in-process HTTP surface: download control, the unified
// download state view, a ranged playback proxy and the metrics endpoint.
package rest
