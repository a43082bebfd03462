package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/signctl/internal/device"
)

// writeSelfSigned writes a localhost certificate and key to dir.
func writeSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	certPath = filepath.Join(dir, "api.crt")
	keyPath = filepath.Join(dir, "api.key")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath
}

func TestNewTLSConfig(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t, t.TempDir())

	cfg, err := NewTLSConfig(certPath, keyPath)
	if err != nil {
		t.Fatalf("NewTLSConfig() error = %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("len(Certificates) = %d, want 1", len(cfg.Certificates))
	}

	if _, err := NewTLSConfig(filepath.Join(t.TempDir(), "missing.crt"), keyPath); err == nil {
		t.Error("expected error for missing certificate")
	}
}

func TestNewRequiresCertAndKey(t *testing.T) {
	certPath, _ := writeSelfSigned(t, t.TempDir())
	if _, err := New(&Config{Listen: "127.0.0.1:0", CertPath: certPath}, device.NewManager()); err == nil {
		t.Error("New() with a certificate but no key should fail")
	}
}

func TestStartServesHTTPS(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t, t.TempDir())
	srv, err := New(&Config{
		Listen:          "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		CertPath:        certPath,
		KeyPath:         keyPath,
	}, device.NewManager())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Scheme() != "https" {
		t.Errorf("Scheme() = %q, want https", srv.Scheme())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	addrCtx, addrCancel := context.WithTimeout(ctx, 2*time.Second)
	defer addrCancel()
	addr, err := srv.Addr(addrCtx)
	if err != nil {
		t.Fatalf("Addr() error = %v", err)
	}

	client := &http.Client{
		Timeout: 2 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	resp, err := client.Get("https://" + addr.String() + "/api/devices")
	if err != nil {
		t.Fatalf("GET over HTTPS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/devices = %d, want 200", resp.StatusCode)
	}
	if resp.TLS == nil {
		t.Error("response was not served over TLS")
	}
}
