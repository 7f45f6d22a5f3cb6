package client

import (
	"net/http"
	"net/url"
	"strings"
)

// defaultHTTPClient returns a dedicated client so provider-side changes
// (cookie jars, transports) never leak into http.DefaultClient.
func defaultHTTPClient(proxyURL string) *http.Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}
	transport := baseTransport.Clone()
	if p := strings.TrimSpace(proxyURL); p != "" {
		parsed, err := url.Parse(p)
		if err == nil && parsed.Scheme != "" && parsed.Host != "" {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}
	return &http.Client{Transport: transport}
}
