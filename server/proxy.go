package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const maxProxyBodyBytes = 10 << 20

// APIProxyHandler forwards /api/* to the platform through the session's
// interceptor chain: the bearer token is attached and expiry-driven 401s are
// absorbed by a refresh-and-replay before the browser sees anything.
//
// Request bodies are buffered so a replayed request can re-send them.
func (s *Server) APIProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionIDFromContext(r.Context())
		mgr, ok := s.registry.Get(sid)
		if !ok {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		client, err := s.clientFor(sid, mgr)
		if err != nil {
			log.Err(err).Msg("Failed to compose outbound client")
			http.Error(w, `{"message":"upstream unavailable"}`, http.StatusBadGateway)
			return
		}

		upstreamPath := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(RouteAPIPrefix, "/"))
		target := s.apiBaseURL + upstreamPath
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		var body io.Reader
		if r.Body != nil && r.ContentLength != 0 {
			buffered, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes))
			if err != nil {
				http.Error(w, `{"message":"bad request body"}`, http.StatusBadRequest)
				return
			}
			body = bytes.NewReader(buffered)
		}

		req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
		if err != nil {
			http.Error(w, `{"message":"bad request"}`, http.StatusBadRequest)
			return
		}
		copyProxyHeaders(req.Header, r.Header)

		resp, err := client.Do(req)
		if err != nil {
			log.Err(err).Str("path", upstreamPath).Msg("Proxy request failed")
			http.Error(w, `{"message":"upstream unavailable"}`, http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Err(err).Str("path", upstreamPath).Msg("Proxy response copy failed")
		}
	}
}

// copyProxyHeaders forwards content negotiation headers only. Cookies stay on
// this side of the proxy, and Authorization is owned by the interceptor.
func copyProxyHeaders(dst, src http.Header) {
	for _, key := range []string{"Content-Type", "Accept", "Accept-Language"} {
		if value := src.Get(key); value != "" {
			dst.Set(key, value)
		}
	}
}
