// Package domain holds the pure types of the scoping workflow engine:
// sessions, stage definitions, payload documents and the error taxonomy.
// It has no dependencies on persistence or transport and performs no I/O.
package domain
