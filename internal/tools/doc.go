// Package tools runs external processes for the scan gateway.
//
// Ownership boundary:
// - process execution under a deadline (argument-vector and shell forms)
//
// - local and SSH-backed command runners
//
// - timeout and execution-error classification
//
// The argument-vector form never involves a shell. RunShell is the only
// entry point that does, and it exists solely for the raw command path.
package tools
