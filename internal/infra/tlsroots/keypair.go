// Package tlsroots provides the reloadable node key pair.
package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"sync"
)

// KeyPair holds the node certificate and swaps it on Reload.
//
// A failed reload keeps serving the previous certificate.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewKeyPair loads certFile and keyFile.
func NewKeyPair(certFile, keyFile string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp := &KeyPair{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger,
	}
	if err := kp.Reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Files returns the certificate and key paths.
func (kp *KeyPair) Files() (certFile, keyFile string) {
	return kp.certFile, kp.keyFile
}

// Reload reads the key pair from disk again.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		kp.logger.Error("certificate reload failed",
			"cert_file", kp.certFile,
			"error", err,
		)
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}

	kp.mu.Lock()
	kp.cert = &cert
	kp.mu.Unlock()

	attrs := []any{"cert_file", kp.certFile}
	if cert.Leaf != nil {
		attrs = append(attrs, "subject", cert.Leaf.Subject.CommonName, "not_after", cert.Leaf.NotAfter)
	}
	kp.logger.Info("certificate loaded", attrs...)
	return nil
}

// Certificate returns the current certificate.
func (kp *KeyPair) Certificate() *tls.Certificate {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.cert
}

// GetCertificate implements tls.Config.GetCertificate.
func (kp *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return kp.Certificate(), nil
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (kp *KeyPair) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return kp.Certificate(), nil
}
