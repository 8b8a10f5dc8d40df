// Package download runs background downloads of tracks into durable storage.
//
// The Orchestrator owns a FIFO queue and a fixed pool of transfer permits,
// retries failed transfers with exponential backoff and publishes every state
// change into a StateStore, which merges live transfers with the downloads
// recorded in the catalogue store into one observable view.
package download
