package certs

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	cert, err := Generate(14 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Verify TLS certificate exists
	if len(cert.TLSCert.Certificate) == 0 {
		t.Fatal("no certificate data")
	}

	// Parse the cert
	x509Cert, err := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse cert: %v", err)
	}

	// Verify validity period
	validity := x509Cert.NotAfter.Sub(x509Cert.NotBefore)
	if validity > 14*24*time.Hour+2*time.Minute {
		t.Errorf("validity too long: %v", validity)
	}

	// Verify not expired
	if x509Cert.NotAfter.Before(time.Now()) {
		t.Error("cert is already expired")
	}

	// Verify fingerprint matches
	expectedFingerprint := sha256.Sum256(cert.TLSCert.Certificate[0])
	if cert.Fingerprint != expectedFingerprint {
		t.Error("fingerprint mismatch")
	}

	// Verify FingerprintBase64 is non-empty
	fp := cert.FingerprintBase64()
	if fp == "" {
		t.Error("FingerprintBase64 returned empty string")
	}

	// Verify DNS name
	found := false
	for _, name := range x509Cert.DNSNames {
		if name == "localhost" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected localhost in DNS names")
	}
}

func TestGenerateMaxValidity(t *testing.T) {
	t.Parallel()
	// Requesting more than 14 days should cap at 14 days
	cert, err := Generate(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	x509Cert, err := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse cert: %v", err)
	}

	validity := x509Cert.NotAfter.Sub(x509Cert.NotBefore)
	if validity > 14*24*time.Hour+2*time.Minute {
		t.Errorf("validity should be capped at 14 days, got: %v", validity)
	}
}

func writePEM(t *testing.T, cert *CertInfo) (string, string) {
	t.Helper()
	dir := t.TempDir()
	keyDER, err := x509.MarshalECPrivateKey(cert.TLSCert.PrivateKey.(*ecdsa.PrivateKey))
	if err != nil {
		t.Fatal(err)
	}
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.TLSCert.Certificate[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath
}

func TestLoad(t *testing.T) {
	t.Parallel()
	gen, err := Generate(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	certPath, keyPath := writePEM(t, gen)

	loaded, err := Load(certPath, keyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Fingerprint != gen.Fingerprint {
		t.Error("fingerprint of loaded certificate differs")
	}
	if loaded.SelfSigned {
		t.Error("loaded certificate marked self-signed")
	}
	if !loaded.NotAfter.Equal(gen.NotAfter.Truncate(time.Second)) {
		t.Errorf("NotAfter = %v, want %v", loaded.NotAfter, gen.NotAfter)
	}
	if len(loaded.FingerprintHex()) != 64 {
		t.Errorf("hex fingerprint = %q", loaded.FingerprintHex())
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cert, err := Resolve("", "")
	if err != nil || !cert.SelfSigned {
		t.Fatalf("Resolve() = %v, %v", cert, err)
	}
	if cfg := cert.TLSConfig(); len(cfg.Certificates) != 1 {
		t.Error("TLSConfig without certificate")
	}
	if _, err := Resolve("cert.pem", ""); err == nil {
		t.Error("Resolve with only a certificate succeeded")
	}
	if _, err := Resolve(filepath.Join(t.TempDir(), "a"), filepath.Join(t.TempDir(), "b")); err == nil {
		t.Error("Resolve with missing files succeeded")
	}
}
