package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/Showmax/go-fqdn"
)

// Hostname resolves a name other machines can reach this host by.
var Hostname = fqdn.FqdnHostname

// shareURL builds the public link of a room. A configured base URL wins;
// otherwise the request origin is used, swapping localhost for the machine's
// FQDN so a scanned QR code still works.
func shareURL(r *http.Request, baseURL, slug string) string {
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/") + "/r/" + slug
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	host := r.Host
	name, port, err := net.SplitHostPort(host)
	if err != nil {
		name, port = host, ""
	}
	if isLoopback(name) {
		if h, err := Hostname(); err == nil && h != "" {
			name = h
			host = name
			if port != "" {
				host = net.JoinHostPort(name, port)
			}
		}
	}
	return scheme + "://" + host + "/r/" + slug
}

func isLoopback(name string) bool {
	if name == "localhost" || name == "" {
		return true
	}
	ip := net.ParseIP(name)
	return ip != nil && ip.IsLoopback()
}
