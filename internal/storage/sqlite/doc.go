// Package sqlite implements the durable catalogue store on SQLite.
package sqlite
