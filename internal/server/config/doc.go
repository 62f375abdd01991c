// Package config defines the usagemesh-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation run before the server starts
//   - sanitize.go: a copy safe to log
//   - cluster.go: node id resolution and mapping to clusterserver.Config
//
// Values are loaded with internal/infra/confloader from a YAML file and
// USAGEMESH_ environment variables.
package config
