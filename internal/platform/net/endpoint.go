// SPDX-License-Identifier: MIT

// Package net validates and normalizes the outbound endpoints the generator posts to.
package net

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidEndpoint is returned for URLs the submitter must not post to.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// NormalizeHost lowercases host and converts internationalized names to ASCII.
// IP literals are returned in canonical form without brackets.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.ContainsAny(host, "/@%") {
		return "", fmt.Errorf("host %q contains a path, userinfo or zone", raw)
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	if strings.Contains(host, ":") {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ParseEndpoint validates an ingestion endpoint. It must be an absolute http(s) URL
// without credentials or fragment. The returned URL carries the normalized host.
func ParseEndpoint(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidEndpoint)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not supported", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in url", ErrInvalidEndpoint)
	}
	if u.Fragment != "" {
		return nil, fmt.Errorf("%w: fragments not allowed", ErrInvalidEndpoint)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	u.Host = joinHostPort(host, u.Port())
	return u, nil
}

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
