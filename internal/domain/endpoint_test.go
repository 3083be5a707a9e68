package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointFromURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want Endpoint
	}{
		{
			name: "full url",
			uri:  "https://example.com:8443/search?q=test#results",
			want: Endpoint{
				Protocol: "https",
				Host:     "example.com",
				Port:     8443,
				Path:     "search",
				Query:    "q=test",
				Fragment: "results",
			},
		},
		{
			name: "scheme and host only",
			uri:  "http://example.com",
			want: Endpoint{Protocol: "http", Host: "example.com"},
		},
		{
			name: "bare host",
			uri:  "example.com",
			want: Endpoint{Host: "example.com"},
		},
		{
			name: "bare host with port and path",
			uri:  "example.com:8080/admin",
			want: Endpoint{Host: "example.com", Port: 8080, Path: "admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndpointFromURI(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointFromURIErrors(t *testing.T) {
	for _, uri := range []string{"", "http://", "http://exa mple.com/x"} {
		t.Run(uri, func(t *testing.T) {
			_, err := EndpointFromURI(uri)
			assert.Error(t, err)
		})
	}
}

func TestEndpointString(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{
			Endpoint{Protocol: "https", Host: "example.com", Port: 8443, Path: "search", Query: "q=test", Fragment: "results"},
			"https://example.com:8443/search?q=test#results",
		},
		{
			Endpoint{Host: "example.com"},
			"example.com",
		},
		{
			Endpoint{Protocol: "http", Host: "example.com", Path: "a/b"},
			"http://example.com/a/b",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ep.String())
	}
}
