// SPDX-License-Identifier: MIT

package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "default endpoint", raw: "http://localhost:8080/event/events", want: "http://localhost:8080/event/events"},
		{name: "uppercase scheme and host", raw: "HTTP://Example.COM/event/events", want: "http://example.com/event/events"},
		{name: "idn host", raw: "https://bücher.example/ingest", want: "https://xn--bcher-kva.example/ingest"},
		{name: "ipv6 literal", raw: "http://[::1]:8080/events", want: "http://[::1]:8080/events"},
		{name: "surrounding space", raw: "  http://10.0.0.5/events ", want: "http://10.0.0.5/events"},
		{name: "empty", raw: "", wantErr: true},
		{name: "relative", raw: "/event/events", wantErr: true},
		{name: "ftp scheme", raw: "ftp://example.com/events", wantErr: true},
		{name: "credentials", raw: "http://user:pw@example.com/events", wantErr: true},
		{name: "fragment", raw: "http://example.com/events#x", wantErr: true},
		{name: "garbage", raw: "not a url", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := ParseEndpoint(tc.raw)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidEndpoint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, u.String())
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	h, err := NormalizeHost("LocalHost.")
	require.NoError(t, err)
	assert.Equal(t, "localhost", h)

	h, err = NormalizeHost("[2001:DB8::1]")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", h)

	_, err = NormalizeHost("example.com:80")
	assert.Error(t, err)
	_, err = NormalizeHost("")
	assert.Error(t, err)
}

func TestSanitizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com/events", SanitizeURL("http://u:p@example.com/events?token=x"))
	assert.Equal(t, "invalid-url-redacted", SanitizeURL("http://[::1"))
}
