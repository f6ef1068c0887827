package auth

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

type Mode string

const (
	ModeLocalhost Mode = "localhost"
	ModeAPIKey    Mode = "api_key"
)

// Info is the authenticated identity attached to the request context.
type Info struct {
	Mode      Mode
	Project   string
	Localhost bool
}

type contextKey struct{}

func FromContext(ctx context.Context) (Info, bool) {
	v, ok := ctx.Value(contextKey{}).(Info)
	return v, ok
}

// Admit decides whether a request passes the ring's policy: loopback
// callers enter without credentials when the ring allows it, everyone else
// needs a bearer key the ring knows.
func (k *Keyring) Admit(r *http.Request) (Info, bool) {
	if k.AllowLocalhostWithoutAuth && requestIsLoopback(r) {
		return Info{Mode: ModeLocalhost, Localhost: true}, true
	}
	key := bearerKey(r)
	if key == "" {
		return Info{}, false
	}
	project, ok := k.ProjectForKey(key)
	if !ok {
		return Info{}, false
	}
	return Info{Mode: ModeAPIKey, Project: project}, true
}

// Middleware guards an HTTP surface with the ring's admission policy and
// stores the resulting identity on the request context.
func Middleware(ring *Keyring) func(http.Handler) http.Handler {
	if ring == nil {
		ring = defaultKeyring()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := ring.Admit(r)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, info)))
		})
	}
}

// bearerKey extracts the key from an "Authorization: Bearer ..." header.
// Empty when the header is absent, malformed or uses another scheme.
func bearerKey(r *http.Request) string {
	scheme, key, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(key)
}

// requestIsLoopback trusts the first X-Forwarded-For hop when the header is
// present, otherwise the socket peer address.
func requestIsLoopback(r *http.Request) bool {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return hostIsLoopback(strings.TrimSpace(first))
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return hostIsLoopback(strings.TrimSpace(host))
}

func hostIsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
