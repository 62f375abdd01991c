// Package config holds the usagemesh-cli profile (~/.usagemesh/cli.yaml).
//
// Flags and USAGEMESH_* environment variables override profile values.
package config
