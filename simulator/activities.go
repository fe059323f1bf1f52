package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gator-social/internal/api"
	"gator-social/internal/models"

	"github.com/google/uuid"
)

const numWorkers = 5

// SimulateActivities runs the message, toggle and inbox loops until ctx ends.
func (s *EnhancedSimulator) SimulateActivities(ctx context.Context) {
	loops := []struct {
		name      string
		frequency float64
		action    func(context.Context, *SimulatedUser)
	}{
		{"messages", s.config.MessageFrequency, s.sendMessage},
		{"toggles", s.config.ToggleFrequency, s.toggle},
		{"reads", s.config.ReadFrequency, s.readInbox},
	}

	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.simulate(ctx, loop.name, loop.frequency, loop.action)
		}()
	}
	wg.Wait()
}

// simulate offers every user to a worker pool once per tick; each worker acts
// with a probability that yields frequency actions per user per minute.
func (s *EnhancedSimulator) simulate(ctx context.Context, name string, frequency float64, action func(context.Context, *SimulatedUser)) {
	if frequency <= 0 {
		return
	}
	s.logger.Debug().Str("loop", name).Msg("starting activity loop")

	chance := frequency / 60 * s.config.TickInterval.Seconds()
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	jobs := make(chan *SimulatedUser, s.config.NumUsers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				if ctx.Err() == nil && rand.Float64() < chance {
					action(ctx, user)
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-ticker.C:
			for _, user := range s.snapshotUsers() {
				select {
				case jobs <- user:
				default:
					// Workers are behind; skip this user for the tick.
				}
			}
		}
	}
}

func (s *EnhancedSimulator) sendMessage(ctx context.Context, user *SimulatedUser) {
	peer := s.pickUser()
	if peer == nil || peer.ID == user.ID {
		return
	}
	roomID, ok := s.roomFor(ctx, user, peer)
	if !ok {
		return
	}

	body := map[string]string{"payload": "hello from " + user.Username + " about " + getRandomTheme()}
	status, _, err := s.makeRequest(ctx, user, http.MethodPost, "/rooms/"+roomID.String()+"/messages", body)
	if err != nil || status != http.StatusOK {
		return
	}
	s.stats.mu.Lock()
	s.stats.MessagesSent++
	s.stats.mu.Unlock()
}

// roomFor returns the room between user and peer, opening it if needed. A
// conflict means the peer opened it first, so the room is looked up instead.
func (s *EnhancedSimulator) roomFor(ctx context.Context, user, peer *SimulatedUser) (uuid.UUID, bool) {
	key := models.PairKey(user.ID, peer.ID)
	s.mu.RLock()
	roomID, ok := s.rooms[key]
	s.mu.RUnlock()
	if ok {
		return roomID, true
	}

	status, raw, err := s.makeRequest(ctx, user, http.MethodPost, "/rooms", map[string]string{"userId": peer.ID.String()})
	if err != nil {
		return uuid.Nil, false
	}

	switch status {
	case http.StatusOK:
		var out api.CreateMessageRoomOutput
		if json.Unmarshal(raw, &out) != nil || out.Room == nil {
			return uuid.Nil, false
		}
		roomID = out.Room.ID
		s.stats.mu.Lock()
		s.stats.RoomsOpened++
		s.stats.mu.Unlock()

	case http.StatusConflict:
		if roomID, ok = s.findRoom(ctx, user, peer.ID); !ok {
			return uuid.Nil, false
		}

	default:
		return uuid.Nil, false
	}

	s.mu.Lock()
	s.rooms[key] = roomID
	s.mu.Unlock()
	return roomID, true
}

func (s *EnhancedSimulator) findRoom(ctx context.Context, user *SimulatedUser, peerID uuid.UUID) (uuid.UUID, bool) {
	status, raw, err := s.makeRequest(ctx, user, http.MethodGet, "/rooms", nil)
	if err != nil || status != http.StatusOK {
		return uuid.Nil, false
	}
	var out api.SeeRoomsOutput
	if json.Unmarshal(raw, &out) != nil {
		return uuid.Nil, false
	}
	for _, room := range out.Rooms {
		for _, member := range room.Users {
			if member.ID == peerID {
				return room.ID, true
			}
		}
	}
	return uuid.Nil, false
}

// toggle likes a popular post or follows a popular user, flipping any existing edge.
func (s *EnhancedSimulator) toggle(ctx context.Context, user *SimulatedUser) {
	var endpoint string
	if rand.Float64() < 0.5 {
		postID, ok := s.pickPost()
		if !ok {
			return
		}
		endpoint = "/posts/" + postID.String() + "/like"
	} else {
		peer := s.pickUser()
		if peer == nil || peer.ID == user.ID {
			return
		}
		endpoint = "/users/" + peer.ID.String() + "/follow"
	}

	status, _, err := s.makeRequest(ctx, user, http.MethodPost, endpoint, nil)
	if err != nil || status != http.StatusOK {
		return
	}
	s.stats.mu.Lock()
	s.stats.Toggles++
	s.stats.mu.Unlock()
}

// readInbox marks every unread message of the user's rooms as read.
func (s *EnhancedSimulator) readInbox(ctx context.Context, user *SimulatedUser) {
	status, raw, err := s.makeRequest(ctx, user, http.MethodGet, "/rooms", nil)
	if err != nil || status != http.StatusOK {
		return
	}
	var rooms api.SeeRoomsOutput
	if json.Unmarshal(raw, &rooms) != nil {
		return
	}

	for _, room := range rooms.Rooms {
		if room.UnreadTotal == 0 {
			continue
		}
		first := min(room.UnreadTotal, 50)
		endpoint := "/rooms/" + room.ID.String() + "/messages?first=" + strconv.Itoa(first)
		status, raw, err := s.makeRequest(ctx, user, http.MethodGet, endpoint, nil)
		if err != nil || status != http.StatusOK {
			continue
		}
		var page api.MessagePageOutput
		if json.Unmarshal(raw, &page) != nil || page.Page == nil {
			continue
		}

		for _, msg := range page.Items {
			if msg.Read || msg.AuthorID == user.ID {
				continue
			}
			status, _, err := s.makeRequest(ctx, user, http.MethodPost, "/messages/"+msg.ID+"/read", nil)
			if err == nil && status == http.StatusOK {
				s.stats.mu.Lock()
				s.stats.MessagesRead++
				s.stats.mu.Unlock()
			}
		}
	}
}

// Helper functions

func (s *EnhancedSimulator) pickUser() *SimulatedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.users) == 0 {
		return nil
	}
	return s.users[s.getZipfNumber(len(s.users))]
}

func (s *EnhancedSimulator) pickPost() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.posts) == 0 {
		return uuid.Nil, false
	}
	return s.posts[s.getZipfNumber(len(s.posts))], true
}

func (s *EnhancedSimulator) randomRoomOf(user *SimulatedUser) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []uuid.UUID
	for key, roomID := range s.rooms {
		if strings.Contains(key, user.ID.String()) {
			mine = append(mine, roomID)
		}
	}
	if len(mine) == 0 {
		return uuid.Nil, false
	}
	return mine[rand.Intn(len(mine))], true
}
