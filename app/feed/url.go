package feed

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that a source URL is a well-formed absolute http(s)
// URL. Feeds are created only with URLs that pass this check.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}
