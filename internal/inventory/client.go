package inventory

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/kaidyth/lexa/internal/config"
)

// LocalSNIHostname is the SNI presented when the configured upstream host
// is a literal IP address, so a certificate minted for a stable hostname
// can still be negotiated against a server with no DNS name of its own.
const LocalSNIHostname = "local.lexa.kaidyth.com"

// DefaultTimeout bounds every upstream container-listing call.
const DefaultTimeout = 5 * time.Second

// Client fetches the container inventory from the upstream container host
// over mTLS.
type Client struct {
	cfg        config.LXDConfig
	httpClient *http.Client
}

// NewClient builds a Client from the server.lxd configuration section,
// loading the client certificate/key pair and, if configured, a CA bundle
// used to verify the upstream's server certificate when the host is a DNS
// name.
func NewClient(cfg config.LXDConfig) (*Client, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("inventory: loading client certificate: %w", err)
	}

	host := cfg.Bind.Host
	isLiteralIP := net.ParseIP(host) != nil

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if isLiteralIP {
		// The upstream has no stable DNS name of its own; present a fixed
		// SNI and skip server-certificate verification entirely (chain and
		// name), so the CA bundle below is not consulted for a literal IP.
		tlsCfg.ServerName = LocalSNIHostname
		tlsCfg.InsecureSkipVerify = true
	}

	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("inventory: reading ca_certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("inventory: no certificates parsed from %s", cfg.CACert)
		}
		tlsCfg.RootCAs = pool
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsCfg,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
	}, nil
}

// GetInventory fetches the full container listing from the upstream
// container host.
func (c *Client) GetInventory(ctx context.Context) (*Inventory, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	url := fmt.Sprintf("https://%s:%d/1.0/containers?recursion=2", c.cfg.Bind.Host, c.cfg.Bind.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("inventory: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory: upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventory: upstream returned status %d", resp.StatusCode)
	}

	var inv Inventory
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return nil, fmt.Errorf("inventory: decoding response: %w", err)
	}

	return &inv, nil
}
