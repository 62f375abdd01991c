// Package tlsroots builds the mutual TLS material used between cluster nodes.
//
//   - roots.go: loading the cluster CA bundle
//   - keypair.go: the node certificate, reloadable without a restart
//   - material.go: server and client tls.Config built from both
//
// Every node presents the same kind of certificate as server and client, and
// both sides verify the peer against the cluster CA.
package tlsroots
