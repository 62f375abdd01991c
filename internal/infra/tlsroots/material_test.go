// Package tlsroots tests TLS material loading.
package tlsroots

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		enabled bool
		wantErr bool
	}{
		{"empty", Config{}, false, false},
		{"complete", Config{CertFile: "a", KeyFile: "b", CAFile: "c"}, true, false},
		{"missing ca", Config{CertFile: "a", KeyFile: "b"}, true, true},
		{"only ca", Config{CAFile: "c"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", got, tt.enabled)
			}
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaterial_MutualTLS(t *testing.T) {
	ca := newTestCA(t)
	dir := t.TempDir()
	certFile, keyFile := ca.issueNodeCert(t, dir, "umnode-a", 2)
	caFile := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(caFile, ca.pem, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	m, err := Load(Config{CertFile: certFile, KeyFile: keyFile, CAFile: caFile}, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client cert", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, r.TLS.PeerCertificates[0].Subject.CommonName)
	}))
	srv.TLS = m.ServerConfig()
	srv.StartTLS()
	defer srv.Close()

	t.Run("peer with node certificate", func(t *testing.T) {
		client := &http.Client{Transport: &http.Transport{TLSClientConfig: m.ClientConfig()}}
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "umnode-a" {
			t.Errorf("peer CN = %q, want umnode-a", body)
		}
	})

	t.Run("peer without certificate", func(t *testing.T) {
		cfg := m.ClientConfig()
		cfg.GetClientCertificate = nil
		client := &http.Client{Transport: &http.Transport{TLSClientConfig: cfg}}
		if resp, err := client.Get(srv.URL); err == nil {
			resp.Body.Close()
			t.Error("request without client certificate should fail")
		}
	})
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(Config{CertFile: "a"}, nil); err == nil {
		t.Error("Load() should reject a partial config")
	}
}
