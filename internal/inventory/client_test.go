package inventory

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/kaidyth/lexa/internal/config"
	"github.com/stretchr/testify/require"
)

// generateTestCertPEM writes a self-signed cert/key pair usable both as a
// client identity and, via its own PEM, as a trusted CA bundle (the cert
// is its own issuer).
func generateTestCertPEM(t *testing.T, dir, prefix string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "lexa-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, prefix+".pem")
	keyPath = filepath.Join(dir, prefix+".key")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}))
	require.NoError(t, keyOut.Close())

	return certPath, keyPath
}

func TestNewClientMissingCertificate(t *testing.T) {
	_, err := NewClient(config.LXDConfig{Certificate: "/nonexistent.pem", Key: "/nonexistent.key"})
	require.Error(t, err)
}

func TestClientGetInventoryOverTLS(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := generateTestCertPEM(t, dir, "server")
	clientCertPath, clientKeyPath := generateTestCertPEM(t, dir, "client")

	inv := Inventory{Metadata: []Metadatum{
		{Name: "web", Status: "Running", Code: 103},
	}}

	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1.0/containers", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("recursion"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(inv))
	}))

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)
	ts.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	ts.StartTLS()
	defer ts.Close()

	addr := ts.Listener.Addr().String()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.LXDConfig{
		Bind:        config.BindConfig{Host: host, Port: port},
		Certificate: clientCertPath,
		Key:         clientKeyPath,
		CACert:      certPath,
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)

	got, err := client.GetInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Metadata, 1)
	require.Equal(t, "web", got.Metadata[0].Name)
}
