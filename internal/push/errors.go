package push

import "strings"

// permanentMarkers identify per-token error codes meaning the token will
// never succeed again and should be removed from its owner's set. Everything
// else (quota, timeout, internal) is transient and the token is retained.
var permanentMarkers = []string{
	"registration-token-not-registered",
	"invalid-registration-token",
	"messaging/registration-token-not-registered",
	"messaging/invalid-registration-token",
	"auth/invalid-user-token",
	"invalid-argument",
}

// IsPermanentFailure reports whether a per-token error code marks the token
// as permanently invalid. Matching is by substring because providers have
// shipped the same underlying code under several prefixes over time.
func IsPermanentFailure(code string) bool {
	if code == "" {
		return false
	}
	code = strings.ToLower(strings.TrimSpace(code))
	for _, marker := range permanentMarkers {
		if strings.Contains(code, marker) {
			return true
		}
	}
	return false
}
