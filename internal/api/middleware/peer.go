package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
)

type peerAddrKey struct{}

// PeerAddr records the connection's remote address before any proxy header
// middleware rewrites r.RemoteAddr. Mount it ahead of chi's RealIP.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPeerAddr returns the address stored by PeerAddr.
func GetPeerAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(peerAddrKey{}).(string); ok {
		return addr
	}
	return ""
}

// LoopbackOnly passes requests whose connection comes from a loopback
// address and hands every other request to denied. Forwarding headers are
// ignored.
func LoopbackOnly(denied http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := GetPeerAddr(r.Context())
			if addr == "" {
				addr = r.RemoteAddr
			}
			if !isLoopback(addr) {
				denied.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return ip.Unmap().IsLoopback()
}
