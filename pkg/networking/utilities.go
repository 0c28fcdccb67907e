package networking

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// HTTPClient is the interface for HTTP clients used by this package.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// privateIPBlocks holds the address ranges the dial guard refuses.
var privateIPBlocks []*net.IPNet

func init() {
	for _, cidr := range []string{
		"127.0.0.0/8",    // IPv4 loopback
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"169.254.0.0/16", // RFC 3927 link-local
		"::1/128",        // IPv6 loopback
		"fe80::/10",      // IPv6 link-local
		"fc00::/7",       // IPv6 unique local
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil {
			privateIPBlocks = append(privateIPBlocks, block)
		}
	}
}

// IsURL returns true when the string is a well-formed http or https URL.
func IsURL(str string) bool {
	parsed, err := url.Parse(str)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// IsLocalhost returns true when the host (optionally host:port) refers to the
// local machine.
func IsLocalhost(host string) bool {
	for _, prefix := range []string{"localhost", "127.0.0.1", "[::1]"} {
		if host == prefix || strings.HasPrefix(host, prefix+":") {
			return true
		}
	}
	return false
}

// ValidatePublicAddress returns an error when the dial address points at a
// private or loopback IP. The address is expected in host:port form with the
// host already resolved to an IP.
func ValidatePublicAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("failed to split host and port from %s: %w", address, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("failed to parse IP address from %s", host)
	}

	for _, block := range privateIPBlocks {
		if block.Contains(ip) {
			return fmt.Errorf("requests to private IP address %s are not allowed", ip)
		}
	}

	return nil
}
