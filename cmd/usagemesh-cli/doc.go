// Package main provides the entry point for usagemesh-cli.
//
// The CLI talks to a usagemesh-server over HTTP:
//
//   - usage report and node-local counters
//   - cluster membership and server status
//   - license inspection, and offline license issuing
//
// Usage:
//
//	usagemesh-cli [global flags] command [flags]
//	usagemesh-cli -o json usage
//	usagemesh-cli --server http://10.0.0.5:7080 cluster nodes
package main
