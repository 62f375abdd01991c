// Package config provides the CLI configuration model.
package config

import "time"

// CLIConfig is the configuration for usagemesh-cli.
type CLIConfig struct {
	// Server is the usagemesh-server HTTP address.
	Server string `yaml:"server"`

	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "http://127.0.0.1:7080",
		Output:  "table",
		Timeout: 30 * time.Second,
	}
}
