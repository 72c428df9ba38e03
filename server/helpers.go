package server

import (
	"net/http"
	"strconv"
)

// publicURLs returns the HTTP and WebSocket base URLs the client used to
// reach the server, honoring TLS-terminating proxies.
func publicURLs(r *http.Request) (httpURL, wsURL string) {
	secure := r.TLS != nil ||
		r.Header.Get("X-Forwarded-Proto") == "https" ||
		r.Header.Get("X-Forwarded-Ssl") == "on"

	if secure {
		return "https://" + r.Host, "wss://" + r.Host
	}
	return "http://" + r.Host, "ws://" + r.Host
}

// formatCount formats counters with thousand separators
func formatCount(n uint64) string {
	s := strconv.FormatUint(n, 10)
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}
