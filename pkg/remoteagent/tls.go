package remoteagent

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// TLSConfig holds TLS options for reaching the remote agent.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"` // dev/test only
	CACertificate      string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty"`
}

// ConfigureTLS creates an http.Transport with the given TLS options. A nil
// config yields a clone of the default transport.
func ConfigureTLS(config *TLSConfig) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config == nil {
		return transport, nil
	}
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify} //nolint:gosec

	if config.CACertificate != "" {
		caCert, err := os.ReadFile(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", config.CACertificate, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", config.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}
	return transport, nil
}
