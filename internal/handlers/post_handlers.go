package handlers

import (
	"net/http"
)

// HandleToggleLike likes the post in the path, or unlikes it
func (s *Server) HandleToggleLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := uuidParam(w, r, "postID")
		if !ok {
			return
		}
		res := s.Service.ToggleLike(r.Context(), viewer(r), postID)
		respond(w, res, res)
	}
}

// HandlePostLikes pages through the users who like a post
func (s *Server) HandlePostLikes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := uuidParam(w, r, "postID")
		if !ok {
			return
		}
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SeePostLikes(r.Context(), viewer(r), postID, win)
		respond(w, out.Result, out)
	}
}

// HandleComments pages through a post's comments, oldest first
func (s *Server) HandleComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := uuidParam(w, r, "postID")
		if !ok {
			return
		}
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SeeComments(r.Context(), postID, win)
		respond(w, out.Result, out)
	}
}
