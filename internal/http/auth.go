package httpx

import (
	"net/http"
	"strings"
)

// sessionToken extracts the bearer token from the Authorization header.
// It returns an empty string when no well-formed token is present; caller
// resolution in the services turns that into the uniform
// "no user logged in" failure, re-checked on every request.
func sessionToken(req *http.Request) string {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
