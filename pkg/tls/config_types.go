package tls

import (
	"crypto/tls"
	"time"
)

// Config holds TLS configuration options. The same section configures the
// client side toward the collaborator and the metrics listener.
type Config struct {
	Enabled  bool   `yaml:"enabled"`   // Enable TLS
	CertFile string `yaml:"cert_file"` // Path to certificate file
	KeyFile  string `yaml:"key_file"`  // Path to private key file
	CAFile   string `yaml:"ca_file"`   // Path to CA certificate (peer verification)

	// Certificate generation options (if CertFile/KeyFile not provided)
	AutoGenerate bool          `yaml:"auto_generate"` // Auto-generate self-signed certificates
	Hosts        []string      `yaml:"hosts"`         // Hostnames/IPs for generated certificate
	Organization string        `yaml:"organization"`  // Organization name for generated certificate
	ValidFor     time.Duration `yaml:"valid_for"`     // Certificate validity duration (default 1 year)

	InsecureSkipVerify bool `yaml:"insecure_skip_verify"` // Skip certificate verification (NOT for production)
}

// DefaultConfig returns a secure TLS configuration with recommended defaults
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		Hosts:        []string{"localhost", "127.0.0.1"},
		Organization: "CRC Link",
		ValidFor:     365 * 24 * time.Hour, // 1 year
	}
}

// HasKeyPair reports whether a certificate and key are configured
func (c *Config) HasKeyPair() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// CertificateInfo holds certificate metadata
type CertificateInfo struct {
	Subject      string
	Issuer       string
	SerialNumber string
	NotBefore    time.Time
	NotAfter     time.Time
	DNSNames     []string
	IsCA         bool
}

// IsExpired checks if the certificate has expired
func (ci *CertificateInfo) IsExpired() bool {
	return time.Now().After(ci.NotAfter)
}

// ExpiresIn returns the time until certificate expiration
func (ci *CertificateInfo) ExpiresIn() time.Duration {
	return time.Until(ci.NotAfter)
}

// MinVersion is the lowest protocol version either side accepts
const MinVersion = tls.VersionTLS12

// SecureCipherSuites returns the TLS 1.2 suites we allow. TLS 1.3 suites are
// not configurable in crypto/tls.
func SecureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	}
}
