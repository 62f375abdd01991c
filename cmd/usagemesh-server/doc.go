// Package main provides the entry point for usagemesh-server.
//
// Every node of a cluster runs one usagemesh-server. The server:
//
//   - records node-local feature counters (POST /stats/v1/record)
//   - answers node stats requests from peers over the cluster RPC listener
//   - serves the cluster-wide usage report (GET /usage/v1), gated by the
//     installed license and the feature's enablement flag
//
// Usage:
//
//	usagemesh-server [flags]
//	usagemesh-server --config /path/to/config.yaml
//
// The license file and the configuration file are watched; a changed
// license is verified and installed without a restart, and a changed
// log.level is applied immediately.
package main
