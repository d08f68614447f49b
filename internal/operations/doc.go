// Package operations owns the catalog of nmap operations exposed to the
// host protocol.
//
// Ownership boundary:
// - operation and parameter definitions
//
// - the registry (populated once at startup, read-only afterwards)
//
// - argument builders turning bound parameters into an argument vector
//
// - dispatch and failure classification
//
// Every user-supplied value occupies exactly one element of the argument
// vector handed to tools.Executor; no builder joins user input into a string
// that a shell would re-tokenize.
package operations
