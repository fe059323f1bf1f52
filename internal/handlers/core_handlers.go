package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleHealth reports database reachability and request totals.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, errors, uptime := s.Metrics.Snapshot()

		status, code := "healthy", http.StatusOK
		if err := s.Store.Ping(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("health check: database unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      status,
			"requests":    requests,
			"errors":      errors,
			"uptime":      uptime.Round(time.Second).String(),
			"server_time": time.Now().UTC(),
		})
	}
}

// HandleFeed pages through the viewer's feed.
func (s *Server) HandleFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SeeFeed(r.Context(), viewer(r), win)
		respond(w, out.Result, out)
	}
}

// HandleSearchPosts pages through posts matching ?q=.
func (s *Server) HandleSearchPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SearchPosts(r.Context(), viewer(r), r.URL.Query().Get("q"), win)
		respond(w, out.Result, out)
	}
}

// HandleSearchUsers pages through users matching ?q=.
func (s *Server) HandleSearchUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SearchUsers(r.Context(), viewer(r), r.URL.Query().Get("q"), win)
		respond(w, out.Result, out)
	}
}
