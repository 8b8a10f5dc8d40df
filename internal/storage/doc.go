// Package storage defines the durable catalogue records and the store contract.
package storage
