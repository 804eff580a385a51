package utils

import (
	"net"
	"strconv"
	"strings"
)

// JoinHostPort joins host and port, accepting hosts already wrapped in brackets.
func JoinHostPort(host string, port int) string {
	portStr := strconv.Itoa(port)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host + ":" + portStr
	}
	return net.JoinHostPort(host, portStr)
}

// EnsureScheme prefixes endpoint with http:// or https:// when it has no
// scheme. Endpoints that already start with "http" are returned unchanged.
func EnsureScheme(endpoint string, tls bool) string {
	if endpoint == "" || strings.HasPrefix(strings.ToLower(endpoint), "http") {
		return endpoint
	}
	if tls {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
