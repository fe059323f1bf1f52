package handlers

import (
	"net/http"

	"gator-social/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateRoomRequest opens a room with another user
type CreateRoomRequest struct {
	UserID string `json:"userId"`
}

// SendMessageRequest represents a request to post to a room
type SendMessageRequest struct {
	Payload string `json:"payload"`
}

// HandleCreateRoom opens a room between the viewer and the requested user
func (s *Server) HandleCreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if !decode(w, r, &req) {
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			badRequest(w, "Invalid user ID")
			return
		}

		out := s.Service.CreateMessageRoom(r.Context(), viewer(r), userID)
		respond(w, out.Result, out)
	}
}

// HandleListRooms lists the viewer's rooms
func (s *Server) HandleListRooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := s.Service.SeeRooms(r.Context(), viewer(r))
		respond(w, out.Result, out)
	}
}

func (s *Server) HandleGetRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := uuidParam(w, r, "roomID")
		if !ok {
			return
		}
		out := s.Service.SeeRoom(r.Context(), viewer(r), roomID)
		respond(w, out.Result, out)
	}
}

// HandleListMessages pages through a room's history, newest first
func (s *Server) HandleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := uuidParam(w, r, "roomID")
		if !ok {
			return
		}
		win, ok := window(w, r)
		if !ok {
			return
		}
		out := s.Service.SeeRoomMessages(r.Context(), viewer(r), roomID, win)
		respond(w, out.Result, out)
	}
}

func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := uuidParam(w, r, "roomID")
		if !ok {
			return
		}
		var req SendMessageRequest
		if !decode(w, r, &req) {
			return
		}

		out := s.Service.SendMessage(r.Context(), viewer(r), roomID, req.Payload)
		respond(w, out.Result, out)
	}
}

func (s *Server) HandleReadMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.Service.ReadMessage(r.Context(), viewer(r), chi.URLParam(r, "messageID"))
		respond(w, res, res)
	}
}

// HandleRoomUpdates upgrades to a websocket and streams the room's new messages
// until either side goes away. Membership is enforced per message, so the
// upgrade itself only needs a valid token.
func (s *Server) HandleRoomUpdates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := uuidParam(w, r, "roomID")
		if !ok {
			return
		}

		sub, res := s.Service.SubscribeToRoomUpdates(r.Context(), viewer(r), roomID)
		if !res.Ok {
			respond(w, res, res)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already answered the client.
			s.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("websocket upgrade failed")
			sub.Close()
			return
		}

		websocket.NewClient(conn, sub, s.logger).Run()
	}
}
