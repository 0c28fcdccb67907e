package networking

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds outgoing HTTP requests end to end.
	DefaultTimeout = 30 * time.Second

	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 10 * time.Second
)

// ClientBuilder assembles the hardened client used for outbound calls.
// Every request this service makes either carries credentials or fetches
// trust material, so the defaults refuse plain HTTP and dials into private
// address space.
type ClientBuilder struct {
	timeout       time.Duration
	caCertPath    string
	authTokenFile string
	allowPrivate  bool
}

// NewClientBuilder returns a ClientBuilder with the default timeout.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{timeout: DefaultTimeout}
}

// WithTimeout overrides the overall client timeout.
func (b *ClientBuilder) WithTimeout(timeout time.Duration) *ClientBuilder {
	b.timeout = timeout
	return b
}

// WithCABundle trusts the PEM bundle at path instead of the system roots.
func (b *ClientBuilder) WithCABundle(path string) *ClientBuilder {
	b.caCertPath = path
	return b
}

// WithTokenFromFile attaches a bearer token read from path to every request.
func (b *ClientBuilder) WithTokenFromFile(path string) *ClientBuilder {
	b.authTokenFile = path
	return b
}

// WithPrivateIPs permits connections to private and loopback addresses.
// Tests and split-horizon deployments need this; production should not.
func (b *ClientBuilder) WithPrivateIPs(allow bool) *ClientBuilder {
	b.allowPrivate = allow
	return b
}

// Build creates the configured HTTP client.
func (b *ClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}

	if !b.allowPrivate {
		transport.DialContext = (&net.Dialer{
			Control: guardedDialControl,
		}).DialContext
	}

	if b.caCertPath != "" {
		caCert, err := os.ReadFile(b.caCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate bundle: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate bundle")
		}

		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCertPool,
		}
	}

	var rt http.RoundTripper = &HTTPSOnlyTransport{Transport: transport}

	if b.authTokenFile != "" {
		source, err := tokenSourceFromFile(b.authTokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create token source: %w", err)
		}
		rt = &oauth2.Transport{Source: source, Base: rt}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   b.timeout,
	}, nil
}

// HTTPSOnlyTransport rejects non-HTTPS URLs before any bytes leave the
// process. Localhost is exempt so development setups and httptest servers
// keep working.
type HTTPSOnlyTransport struct {
	Transport http.RoundTripper
}

// RoundTrip validates the request URL, then forwards the request.
func (t *HTTPSOnlyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parsed, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, fmt.Errorf("the supplied URL %s is malformed", req.URL.String())
	}

	if parsed.Scheme != "https" && !IsLocalhost(parsed.Host) {
		return nil, fmt.Errorf("the supplied URL %s is not HTTPS scheme", req.URL.String())
	}

	return t.Transport.RoundTrip(req)
}

// guardedDialControl runs before each connection attempt and rejects dials
// into private or loopback address space. Resolution has already happened at
// this point, so DNS rebinding cannot sidestep the check.
func guardedDialControl(_, address string, _ syscall.RawConn) error {
	return ValidatePublicAddress(address)
}

func tokenSourceFromFile(path string) (oauth2.TokenSource, error) {
	token, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read auth token file: %w", err)
	}

	tokenStr := strings.TrimSpace(string(token))
	if tokenStr == "" {
		return nil, fmt.Errorf("auth token file is empty")
	}

	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tokenStr,
		TokenType:   "Bearer",
	}), nil
}
