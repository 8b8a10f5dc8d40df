// Package app wires the runtime of trackvault: the catalogue client, the playback caches,
// the download orchestrator and the durable stores. It runs the command entry points
// on top of that runtime.
package app
