package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authorizeRequest checks the configured auth token against the request.
// The token may arrive as a ?token= query parameter (the only option for
// browser websocket clients) or an Authorization bearer header. An empty
// configured token disables auth.
func (s *Server) authorizeRequest(r *http.Request) bool {
	want := s.cfg.Token
	if want == "" {
		return true
	}
	for _, got := range []string{
		strings.TrimSpace(r.URL.Query().Get("token")),
		bearerToken(r.Header.Get("Authorization")),
	} {
		if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
			return true
		}
	}
	return false
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
