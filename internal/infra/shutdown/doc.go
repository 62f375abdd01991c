// Package shutdown runs named cleanup hooks when the process is asked to
// stop, in reverse order of registration, bounded by a timeout.
package shutdown
