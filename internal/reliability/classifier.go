package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes, used for
// backend websocket handshake failures.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsBenignCancelRace reports whether a backend error code describes a
// cancellation that lost the race against the response finishing on its own.
// These are informational, not failures.
func IsBenignCancelRace(code string) bool {
	switch code {
	case "response_cancel_not_active", "cancellation_failed", "item_truncate_not_active":
		return true
	default:
		return false
	}
}

// IsRetryableRealtimeCode classifies backend realtime error codes worth one
// more attempt before ending the call.
func IsRetryableRealtimeCode(code string) bool {
	switch code {
	case "rate_limited", "resource_exhausted", "server_error", "backend_read_failed", "go_away":
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
