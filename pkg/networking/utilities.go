package networking

import (
	"fmt"
	"net/url"
)

// IsURL reports whether the input is a well-formed http or https URL.
func IsURL(input string) bool {
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// ValidateEndpointURL validates that a URL is usable as an OAuth endpoint.
// Endpoints must be absolute https URLs; http is permitted for loopback
// addresses only, so local test servers keep working.
func ValidateEndpointURL(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if hostname := parsed.Hostname(); hostname != "localhost" && hostname != "127.0.0.1" && hostname != "::1" {
			return fmt.Errorf("http endpoints are only allowed for loopback addresses, got %q", parsed.Host)
		}
	default:
		return fmt.Errorf("unsupported URL scheme: %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}
