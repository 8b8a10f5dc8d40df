// Package sink commits finished downloads into the output folder and resolves their durable references.
package sink
