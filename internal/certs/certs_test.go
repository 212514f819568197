package certs

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func parseCert(t *testing.T, certPEM []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestSelfSignedCoversHosts(t *testing.T) {
	certPEM, keyPEM, err := SelfSigned("bench.local", "127.0.0.1")
	require.NoError(t, err)
	_, err = tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	cert := parseCert(t, certPEM)
	require.Equal(t, "bench.local", cert.Subject.CommonName)
	require.Equal(t, []string{"UFRJ"}, cert.Subject.Organization)
	require.NoError(t, cert.VerifyHostname("bench.local"))
	require.NoError(t, cert.VerifyHostname("127.0.0.1"))
	require.Error(t, cert.VerifyHostname("example.com"))
	require.True(t, cert.NotAfter.After(time.Now().Add(364*24*time.Hour)))
}

func TestSelfSignedDefaultsToLocalhost(t *testing.T) {
	certPEM, _, err := SelfSigned()
	require.NoError(t, err)
	cert := parseCert(t, certPEM)
	require.NoError(t, cert.VerifyHostname("localhost"))
	require.NoError(t, cert.VerifyHostname("127.0.0.1"))
}

func TestGenerateAndLoadPool(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, DefaultCertFile)
	keyFile := filepath.Join(dir, DefaultKeyFile)
	require.NoError(t, Generate(certFile, keyFile, "localhost"))

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	pool, err := LoadPool(certFile)
	require.NoError(t, err)
	data, err := os.ReadFile(certFile)
	require.NoError(t, err)
	_, err = parseCert(t, data).Verify(x509.VerifyOptions{Roots: pool, DNSName: "localhost"})
	require.NoError(t, err)

	_, err = LoadPool(keyFile)
	require.Error(t, err)
	_, err = LoadPool(filepath.Join(dir, "missing.crt"))
	require.Error(t, err)
}

func TestReloaderSwapsCertificateOnRewrite(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	require.NoError(t, Generate(certFile, keyFile))

	r, err := NewReloader(certFile, keyFile)
	require.NoError(t, err)
	r.debounceDelay = 20 * time.Millisecond
	before, err := r.GetCertificate(nil)
	require.NoError(t, err)
	require.NotNil(t, r.TLSConfig().GetCertificate)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		r.Wait()
	}()
	require.NoError(t, r.Watch(ctx))

	require.NoError(t, Generate(certFile, keyFile))
	select {
	case <-r.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("certificate was not reloaded")
	}
	after, err := r.GetCertificate(nil)
	require.NoError(t, err)
	require.False(t, bytes.Equal(before.Certificate[0], after.Certificate[0]))
}

func TestNewReloaderMissingFiles(t *testing.T) {
	_, err := NewReloader(filepath.Join(t.TempDir(), "a.crt"), filepath.Join(t.TempDir(), "a.key"))
	require.Error(t, err)
}
