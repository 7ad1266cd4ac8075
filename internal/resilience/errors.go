package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// IsTransient reports whether an error from an HTTP client is worth
// retrying: network timeouts, connection resets, DNS failures, and
// server-side HTTP statuses embedded in wrapped error messages. A
// no-route response from the routing service is a definitive answer and
// is not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
		"over_query_limit",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
