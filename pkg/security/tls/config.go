package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertificates is returned when a CA file holds no PEM certificates.
var ErrNoCertificates = errors.New("no certificates found")

// ClientConfig configures TLS for outgoing upstream connections.
type ClientConfig struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `yaml:"ca_file"`

	// MinVersion is the minimum TLS version ("1.2" or "1.3").
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// CipherSuites limits TLS 1.2 cipher suites by name. Empty uses Go's
	// defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ServerName overrides the name verified against the server
	// certificate. Empty uses the request host.
	ServerName string `yaml:"server_name"`
}

// Validate reports configuration errors without touching the filesystem.
func (c *ClientConfig) Validate() error {
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("unsupported min_version %q (want 1.2 or 1.3)", c.MinVersion)
	}
	for _, name := range c.CipherSuites {
		if _, ok := cipherSuiteMap[name]; !ok {
			return fmt.Errorf("unsupported cipher suite %q", name)
		}
	}
	return nil
}

// ToTLSConfig converts c to a crypto/tls client configuration.
func (c *ClientConfig) ToTLSConfig() (*tls.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is validated (TLS 1.0/1.1 rejected)
	tlsConfig := &tls.Config{
		MinVersion:   c.parseTLSVersion(),
		CipherSuites: c.parseCipherSuites(),
		ServerName:   c.ServerName,
	}

	if c.CAFile != "" {
		pool, err := c.rootPool()
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// rootPool returns the system roots plus CAFile.
func (c *ClientConfig) rootPool() (*x509.CertPool, error) {
	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w in %s", ErrNoCertificates, c.CAFile)
	}
	return pool, nil
}

// parseTLSVersion converts MinVersion to a tls.Version constant.
func (c *ClientConfig) parseTLSVersion() uint16 {
	if c.MinVersion == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// parseCipherSuites converts cipher suite names to tls constants.
// Nil keeps Go's defaults.
func (c *ClientConfig) parseCipherSuites() []uint16 {
	if len(c.CipherSuites) == 0 {
		return nil
	}
	suites := make([]uint16, 0, len(c.CipherSuites))
	for _, name := range c.CipherSuites {
		if id, ok := cipherSuiteMap[name]; ok {
			suites = append(suites, id)
		}
	}
	return suites
}

// cipherSuiteMap maps the accepted TLS 1.2 cipher suite names.
var cipherSuiteMap = map[string]uint16{
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}
