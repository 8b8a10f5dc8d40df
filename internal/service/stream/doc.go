// Package stream resolves playable URLs for tracks, caches them until expiry
// and serves byte ranges from a local play-time cache when possible.
package stream
