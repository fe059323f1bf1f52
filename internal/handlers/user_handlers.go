package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandleToggleFollow follows the user in the path, or unfollows them
func (s *Server) HandleToggleFollow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := uuidParam(w, r, "userID")
		if !ok {
			return
		}
		res := s.Service.ToggleFollow(r.Context(), viewer(r), userID)
		respond(w, res, res)
	}
}

func (s *Server) HandleFollowers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SeeFollowers(r.Context(), viewer(r), chi.URLParam(r, "username"), win)
		respond(w, out.Result, out)
	}
}

func (s *Server) HandleFollowing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SeeFollowing(r.Context(), viewer(r), chi.URLParam(r, "username"), win)
		respond(w, out.Result, out)
	}
}
