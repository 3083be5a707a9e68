package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is a normalized network endpoint attached to dynamic findings.
type Endpoint struct {
	Protocol string `json:"protocol,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Path     string `json:"path,omitempty"`
	Query    string `json:"query,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

// EndpointFromURI builds an Endpoint from a URL-ish string as reported by
// the scanner.
func EndpointFromURI(uri string) (Endpoint, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint uri %q: %w", uri, err)
	}
	if u.Host == "" && !strings.Contains(uri, "://") {
		// Bare host[:port][/path] without a scheme. A "host:port" prefix
		// would otherwise parse as a scheme with an opaque part.
		u, err = url.Parse("//" + uri)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid endpoint uri %q: %w", uri, err)
		}
	}

	ep := Endpoint{
		Protocol: u.Scheme,
		Host:     u.Hostname(),
		Path:     strings.TrimPrefix(u.Path, "/"),
		Query:    u.RawQuery,
		Fragment: u.Fragment,
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid endpoint port %q: %w", p, err)
		}
		ep.Port = port
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint uri %q has no host", uri)
	}
	return ep, nil
}

func (e Endpoint) String() string {
	var b strings.Builder
	if e.Protocol != "" {
		b.WriteString(e.Protocol)
		b.WriteString("://")
	}
	b.WriteString(e.Host)
	if e.Port != 0 {
		fmt.Fprintf(&b, ":%d", e.Port)
	}
	if e.Path != "" {
		b.WriteString("/")
		b.WriteString(e.Path)
	}
	if e.Query != "" {
		b.WriteString("?")
		b.WriteString(e.Query)
	}
	if e.Fragment != "" {
		b.WriteString("#")
		b.WriteString(e.Fragment)
	}
	return b.String()
}
