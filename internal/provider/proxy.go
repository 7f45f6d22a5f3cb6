package provider

import (
	"fmt"
	"net/url"
)

func parseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("invalid proxy url %q: unsupported scheme", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q: missing host", raw)
	}
	return u, nil
}
