// Package tlsroots provides the TLS material of a node.
package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
)

// Config names the files of the cluster TLS material.
type Config struct {
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	CAFile   string `koanf:"ca_file"`
}

// Enabled reports whether any TLS file is configured.
func (c Config) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != "" || c.CAFile != ""
}

// Validate checks that the configuration is all or nothing.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return errors.New("cert_file, key_file and ca_file must be set together")
	}
	return nil
}

// Material is the loaded cluster TLS state.
type Material struct {
	KeyPair *KeyPair
	CAs     *x509.CertPool
}

// Load reads the key pair and CA bundle named by cfg.
func Load(cfg Config, logger *slog.Logger) (*Material, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kp, err := NewKeyPair(cfg.CertFile, cfg.KeyFile, logger)
	if err != nil {
		return nil, err
	}
	cas, err := LoadCAFile(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	return &Material{KeyPair: kp, CAs: cas}, nil
}

// ServerConfig returns a config that requires peers to present a
// certificate signed by the cluster CA.
func (m *Material) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.KeyPair.GetCertificate,
		ClientCAs:      m.CAs,
		ClientAuth:     tls.RequireAndVerifyClientCert,
		MinVersion:     tls.VersionTLS12,
		NextProtos:     []string{"h2", "http/1.1"},
	}
}

// ClientConfig returns a config that presents the node certificate and
// verifies servers against the cluster CA.
func (m *Material) ClientConfig() *tls.Config {
	return &tls.Config{
		GetClientCertificate: m.KeyPair.GetClientCertificate,
		RootCAs:              m.CAs,
		MinVersion:           tls.VersionTLS12,
	}
}
