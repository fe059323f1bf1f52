package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"gator-social/internal/api"
	"gator-social/internal/config"
	"gator-social/internal/database"
	"gator-social/internal/middleware"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"
	"gator-social/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server holds all server dependencies
type Server struct {
	Service        *api.Service
	Auth           *middleware.Authenticator
	Store          database.DBAdapter
	Metrics        *utils.MetricsCollector
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	AllowedOrigins []string

	upgrader *ws.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a new Server instance with the given components
func NewServer(
	service *api.Service,
	auth *middleware.Authenticator,
	store database.DBAdapter,
	metrics *utils.MetricsCollector,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
	logger zerolog.Logger,
) *Server {
	return &Server{
		Service:        service,
		Auth:           auth,
		Store:          store,
		Metrics:        metrics,
		Gatherer:       gatherer,
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		upgrader:       websocket.NewUpgrader(cfg.AllowedOrigins),
		logger:         logger.With().Str("component", "http").Logger(),
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.HandleHealth())
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.Middleware)

		// Live streams outlive the request timeout.
		r.Get("/rooms/{roomID}/updates", s.HandleRoomUpdates())

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.RequestTimeout))

			r.Post("/rooms", s.HandleCreateRoom())
			r.Get("/rooms", s.HandleListRooms())
			r.Get("/rooms/{roomID}", s.HandleGetRoom())
			r.Get("/rooms/{roomID}/messages", s.HandleListMessages())
			r.Post("/rooms/{roomID}/messages", s.HandleSendMessage())
			r.Post("/messages/{messageID}/read", s.HandleReadMessage())

			r.Post("/posts/{postID}/like", s.HandleToggleLike())
			r.Get("/posts/{postID}/likes", s.HandlePostLikes())
			r.Get("/posts/{postID}/comments", s.HandleComments())

			r.Post("/users/{userID}/follow", s.HandleToggleFollow())
			r.Get("/users/{username}/followers", s.HandleFollowers())
			r.Get("/users/{username}/following", s.HandleFollowing())

			r.Get("/feed", s.HandleFeed())
			r.Get("/search/posts", s.HandleSearchPosts())
			r.Get("/search/users", s.HandleSearchUsers())
		})
	})

	return r
}

// respond writes out as JSON with the status derived from res.
func respond(w http.ResponseWriter, res api.Result, out any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(utils.AppErrorToHTTPStatus(res.Code))
	json.NewEncoder(w).Encode(out)
}

func badRequest(w http.ResponseWriter, message string) {
	res := api.Result{Code: utils.ErrInvalidInput, Error: message}
	respond(w, res, res)
}

// viewer returns the authenticated user. Routes behind Auth.Middleware always have one.
func viewer(r *http.Request) uuid.UUID {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	return userID
}

// uuidParam parses a UUID path parameter, answering 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// window reads ?after=&first= into a pagination window.
func window(w http.ResponseWriter, r *http.Request) (pagination.Window, bool) {
	q := r.URL.Query()
	win := pagination.Window{After: q.Get("after")}
	if first := q.Get("first"); first != "" {
		n, err := strconv.Atoi(first)
		if err != nil {
			badRequest(w, "Invalid first parameter")
			return win, false
		}
		win.Size = n
	}
	return win, true
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		badRequest(w, "Invalid request body")
		return false
	}
	return true
}
