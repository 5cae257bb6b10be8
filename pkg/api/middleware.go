package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// requestAPIKey extracts the client key from X-API-Key, falling back to an
// Authorization bearer token
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

// apiKeyMiddleware rejects requests that do not carry expectedKey
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestAPIKey(r)
			switch {
			case key == "":
				w.Header().Set("WWW-Authenticate", `Bearer realm="wearlevel"`)
				sendError(w, "Missing API key", http.StatusUnauthorized)
			case subtle.ConstantTimeCompare([]byte(key), []byte(expectedKey)) != 1:
				sendError(w, "Invalid API key", http.StatusUnauthorized)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// sendSuccess wraps data in a successful APIResponse
func sendSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendError reports message with statusCode
func sendError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, APIResponse{Error: message})
}
