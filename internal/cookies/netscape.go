// Package cookies loads Netscape cookies.txt exports into an HTTP cookie jar.
package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const httpOnlyPrefix = "#HttpOnly_"

// ParseNetscape parses a Netscape cookies.txt format.
// Format: domain flag path secure expiration name value
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		cookie := &http.Cookie{
			Domain:   parts[0],
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			Name:     parts[5],
			Value:    parts[6],
			HttpOnly: httpOnly,
		}
		// 0 marks a session cookie.
		if expiresUnix, err := strconv.ParseInt(parts[4], 10, 64); err == nil && expiresUnix > 0 {
			cookie.Expires = time.Unix(expiresUnix, 0)
		}
		cookies = append(cookies, cookie)
	}

	return cookies, scanner.Err()
}

// LoadJar reads a cookies.txt file into a new cookie jar.
func LoadJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()

	parsed, err := ParseNetscape(f)
	if err != nil {
		return nil, fmt.Errorf("parse cookies file: %w", err)
	}
	return NewJar(parsed)
}

// NewJar groups cookies by domain and stores them in a fresh jar.
func NewJar(list []*http.Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	byDomain := make(map[string][]*http.Cookie)
	for _, c := range list {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		byDomain[host] = append(byDomain[host], c)
	}
	for host, group := range byDomain {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, group)
	}
	return jar, nil
}
