package auth

import (
	"net/http"
	"strings"
)

// NotifyTokenParam is the query parameter carrying the notify token.
const NotifyTokenParam = "token"

// ExtractNotifyToken reads the notify token from a gateway callback.
func ExtractNotifyToken(r *http.Request) string {
	// 1️⃣ Query (what GoPay calls back with)
	if token := r.URL.Query().Get(NotifyTokenParam); token != "" {
		return token
	}

	// 2️⃣ Authorization header (manual replays)
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
