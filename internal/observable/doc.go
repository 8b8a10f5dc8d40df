// Package observable provides a concurrent observable value and a combine-latest combinator.
package observable
