// Package tlsroots provides CA bundle loading.
package tlsroots

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertsFound is returned when a PEM bundle holds no certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

// LoadCAFile reads a PEM bundle of CA certificates into a new pool.
func LoadCAFile(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: read CA file %s: %w", path, err)
	}
	return ParseCAPEM(data)
}

// ParseCAPEM parses every CERTIFICATE block of pemData into a new pool.
// Blocks of other types are skipped.
func ParseCAPEM(pemData []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	added := 0

	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}

	if added == 0 {
		return nil, ErrNoCertsFound
	}
	return pool, nil
}
