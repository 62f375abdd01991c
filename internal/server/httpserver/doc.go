// Package httpserver provides the HTTP server for usagemesh.
//
// It uses net/http with Go 1.22 method patterns. NewRouter wires the
// handler package behind the Recover, RequestID, RateLimit, Audit and
// Metrics middleware.
package httpserver
