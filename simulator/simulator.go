// Package simulator drives a running engine over HTTP and websockets with a
// population of seeded users, for load and soak testing.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"gator-social/internal/models"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type SimConfig struct {
	NumUsers         int
	PostsPerUser     int
	SimulationTime   time.Duration
	TickInterval     time.Duration
	MessageFrequency float64 // messages per user per minute
	ToggleFrequency  float64 // likes and follows per user per minute
	ReadFrequency    float64 // inbox checks per user per minute
	DisconnectRate   float64
	ReconnectRate    float64
	ZipfS            float64
	EngineURL        string
}

// DefaultSimConfig is a small population suitable for a laptop.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		NumUsers:         20,
		PostsPerUser:     3,
		SimulationTime:   5 * time.Minute,
		TickInterval:     500 * time.Millisecond,
		MessageFrequency: 6,
		ToggleFrequency:  4,
		ReadFrequency:    3,
		DisconnectRate:   0.01,
		ReconnectRate:    0.05,
		ZipfS:            1.07,
		EngineURL:        "http://localhost:8080",
	}
}

type SimulationStats struct {
	mu              sync.RWMutex
	StartTime       time.Time
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	AverageLatency  time.Duration
	ActiveListeners int
	RoomsOpened     int
	MessagesSent    int
	MessagesRead    int
	Toggles         int
	Deliveries      int
}

// SimulatedUser is one seeded account and what the simulator knows about it.
type SimulatedUser struct {
	ID       uuid.UUID
	Username string
	Token    string
	Posts    []uuid.UUID

	listener *ws.Conn
}

// Seeder writes the initial population. database.DBAdapter satisfies it.
type Seeder interface {
	SaveUser(ctx context.Context, user *models.User) error
	SavePost(ctx context.Context, post *models.Post) error
}

// TokenIssuer mints viewer tokens for seeded users.
type TokenIssuer interface {
	GenerateToken(userID uuid.UUID) (string, error)
}

type EnhancedSimulator struct {
	config SimConfig
	seeder Seeder
	issuer TokenIssuer
	stats  *SimulationStats
	client *http.Client
	logger zerolog.Logger

	mu    sync.RWMutex
	users []*SimulatedUser
	posts []uuid.UUID
	rooms map[string]uuid.UUID // keyed by models.PairKey
}

func NewEnhancedSimulator(config SimConfig, seeder Seeder, issuer TokenIssuer, logger zerolog.Logger) *EnhancedSimulator {
	if config.TickInterval <= 0 {
		config.TickInterval = 500 * time.Millisecond
	}
	if config.ZipfS <= 1 {
		config.ZipfS = 1.07 // rand.NewZipf requires s > 1
	}
	return &EnhancedSimulator{
		config: config,
		seeder: seeder,
		issuer: issuer,
		stats: &SimulationStats{
			StartTime: time.Now(),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "simulator").Logger(),
		rooms:  make(map[string]uuid.UUID),
	}
}

// Run seeds the population and then simulates activity until ctx ends.
func (s *EnhancedSimulator) Run(ctx context.Context) error {
	s.logger.Info().Int("users", s.config.NumUsers).Msg("starting simulation")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SimulateActivities(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	s.disconnectAll()
	return nil
}

// initialize writes users and posts straight to storage; the engine exposes
// no sign-up or authoring routes.
func (s *EnhancedSimulator) initialize(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < s.config.NumUsers; i++ {
		user := &models.User{
			ID:       uuid.New(),
			Username: fmt.Sprintf("sim_%s_%d", runID, i),
		}
		user.Email = user.Username + "@sim.local"
		if err := s.seeder.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", user.Username, err)
		}

		token, err := s.issuer.GenerateToken(user.ID)
		if err != nil {
			return fmt.Errorf("failed to mint token for %s: %w", user.Username, err)
		}

		simUser := &SimulatedUser{ID: user.ID, Username: user.Username, Token: token}
		for j := 0; j < s.config.PostsPerUser; j++ {
			post := &models.Post{
				ID:        uuid.New(),
				AuthorID:  user.ID,
				Caption:   fmt.Sprintf("%s on %s", user.Username, getRandomTheme()),
				CreatedAt: base.Add(time.Duration(i*s.config.PostsPerUser+j) * time.Second),
			}
			if err := s.seeder.SavePost(ctx, post); err != nil {
				return fmt.Errorf("failed to seed post: %w", err)
			}
			simUser.Posts = append(simUser.Posts, post.ID)
			s.posts = append(s.posts, post.ID)
		}
		s.users = append(s.users, simUser)
	}

	s.logger.Info().Int("users", len(s.users)).Int("posts", len(s.posts)).Msg("population seeded")
	return nil
}

func getRandomTheme() string {
	themes := []string{"gators", "swamps", "sunsets", "airboats", "herons", "cypress trees"}
	return themes[rand.Intn(len(themes))]
}

// getZipfNumber returns an index in [0, max), skewed towards 0 so that a few
// users and posts draw most of the activity.
func (s *EnhancedSimulator) getZipfNumber(max int) int {
	if max <= 1 {
		return 0
	}
	zipf := rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())), s.config.ZipfS, 1, uint64(max-1))
	return int(zipf.Uint64())
}

// makeRequest calls the engine as user and returns the status and body. A
// 4xx answer is an outcome, not an error; only transport failures and 5xx are.
func (s *EnhancedSimulator) makeRequest(ctx context.Context, user *SimulatedUser, method, endpoint string, data interface{}) (int, []byte, error) {
	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.recordRequestMetrics(start, err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err == nil && resp.StatusCode >= http.StatusInternalServerError {
		err = fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}
	s.recordRequestMetrics(start, err)
	return resp.StatusCode, raw, err
}

func (s *EnhancedSimulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

// simulateConnectivity opens and drops live room listeners at random.
func (s *EnhancedSimulator) simulateConnectivity(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, user := range s.snapshotUsers() {
				s.mu.RLock()
				listening := user.listener != nil
				s.mu.RUnlock()

				switch {
				case listening && rand.Float64() < s.config.DisconnectRate:
					s.disconnect(user, nil)
				case !listening && rand.Float64() < s.config.ReconnectRate:
					if roomID, ok := s.randomRoomOf(user); ok {
						s.listen(ctx, user, roomID)
					}
				}
			}
		}
	}
}

// listen subscribes user to roomID and counts what arrives until the socket closes.
func (s *EnhancedSimulator) listen(ctx context.Context, user *SimulatedUser, roomID uuid.UUID) {
	url := "ws" + strings.TrimPrefix(s.config.EngineURL, "http") +
		"/rooms/" + roomID.String() + "/updates?token=" + user.Token

	start := time.Now()
	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	s.recordRequestMetrics(start, err)
	if err != nil {
		s.logger.Debug().Err(err).Str("user", user.Username).Msg("listener failed to connect")
		return
	}

	s.mu.Lock()
	user.listener = conn
	s.mu.Unlock()
	s.stats.mu.Lock()
	s.stats.ActiveListeners++
	s.stats.mu.Unlock()

	go func() {
		for {
			var msg models.Message
			if err := conn.ReadJSON(&msg); err != nil {
				s.disconnect(user, conn)
				return
			}
			s.stats.mu.Lock()
			s.stats.Deliveries++
			s.stats.mu.Unlock()
		}
	}()
}

// disconnect closes user's listener. A non-nil conn only closes that connection,
// leaving a newer listener in place.
func (s *EnhancedSimulator) disconnect(user *SimulatedUser, conn *ws.Conn) {
	s.mu.Lock()
	current := user.listener
	if current == nil || (conn != nil && conn != current) {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	user.listener = nil
	s.mu.Unlock()

	current.Close()
	s.stats.mu.Lock()
	s.stats.ActiveListeners--
	s.stats.mu.Unlock()
}

func (s *EnhancedSimulator) disconnectAll() {
	for _, user := range s.snapshotUsers() {
		s.disconnect(user, nil)
	}
}

func (s *EnhancedSimulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.logger.Info().
				Float64("req_per_sec", m.RequestsPerSecond).
				Int("errors", m.ErrorCount).
				Dur("avg_latency", m.AverageLatency).
				Int("listeners", m.ActiveListeners).
				Int("rooms", m.RoomsOpened).
				Int("messages", m.MessagesSent).
				Int("deliveries", m.Deliveries).
				Msg("simulation metrics")
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers        int
	ActiveListeners   int
	RoomsOpened       int
	MessagesSent      int
	MessagesRead      int
	Toggles           int
	Deliveries        int
	AverageLatency    time.Duration
	TotalRequests     int
	ErrorCount        int
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *EnhancedSimulator) GetMetrics() SimulationMetrics {
	s.mu.RLock()
	totalUsers := len(s.users)
	s.mu.RUnlock()

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	return SimulationMetrics{
		TotalUsers:        totalUsers,
		ActiveListeners:   s.stats.ActiveListeners,
		RoomsOpened:       s.stats.RoomsOpened,
		MessagesSent:      s.stats.MessagesSent,
		MessagesRead:      s.stats.MessagesRead,
		Toggles:           s.stats.Toggles,
		Deliveries:        s.stats.Deliveries,
		AverageLatency:    s.stats.AverageLatency,
		TotalRequests:     int(s.stats.TotalRequests),
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: float64(s.stats.TotalRequests) / elapsed.Seconds(),
	}
}

func (s *EnhancedSimulator) snapshotUsers() []*SimulatedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*SimulatedUser(nil), s.users...)
}
