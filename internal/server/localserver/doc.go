// Package localserver provides the Unix socket listener for local management.
//
// The socket serves the full HTTP API without rate limiting, plus operations
// that are only reachable by a caller on the same host:
//
//   - POST /local/v1/license/reload  re-read and verify the license file
//   - POST /local/v1/checkpoint      write the node's counters to storage now
//   - POST /local/v1/shutdown        stop the server gracefully
//
// Access is controlled by file system permissions; the socket is created
// with mode 0600.
package localserver
