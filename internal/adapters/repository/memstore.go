package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/duet/internal/domain/model"
)

// MemStore is an in-memory Store guarded by a single RWMutex. Writes are
// coarse-grained on purpose: bulk rating updates must never interleave with
// leaderboard reads.
type MemStore struct {
	mu sync.RWMutex

	songs       map[string]model.Song
	artistSongs map[string][]string // artistKey -> song IDs, insertion order

	duels        map[string][]model.Duel // artistKey -> duels, recording order
	sessionDuels map[string][]model.Duel // sessionID -> duels, recording order

	sessions map[string]model.Session

	aggregates map[string]model.ArtistState
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		songs:        make(map[string]model.Song),
		artistSongs:  make(map[string][]string),
		duels:        make(map[string][]model.Duel),
		sessionDuels: make(map[string][]model.Duel),
		sessions:     make(map[string]model.Session),
		aggregates:   make(map[string]model.ArtistState),
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) UpsertSongs(ctx context.Context, songs []model.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range songs {
		key := model.ArtistKey(s.Artist)
		if existing, ok := m.songs[s.ID]; ok {
			// Catalog fields refresh; rating fields stay with the
			// aggregation executor.
			s.GlobalStrength = existing.GlobalStrength
			s.GlobalRating = existing.GlobalRating
			s.GlobalVoteCount = existing.GlobalVoteCount
			m.songs[s.ID] = s
			continue
		}
		m.songs[s.ID] = s
		m.artistSongs[key] = append(m.artistSongs[key], s.ID)
	}
	return nil
}

func (m *MemStore) GetSong(ctx context.Context, id string) (model.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.songs[id]
	if !ok {
		return model.Song{}, ErrSongNotFound
	}
	return s, nil
}

func (m *MemStore) ListArtistSongs(ctx context.Context, artistKey string) ([]model.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.artistSongs[artistKey]
	out := make([]model.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.songs[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) MergeSongs(ctx context.Context, keepID, removeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[keepID]; !ok {
		return ErrSongNotFound
	}
	removed, ok := m.songs[removeID]
	if !ok {
		return ErrSongNotFound
	}

	for k, duels := range m.duels {
		m.duels[k] = reassignDuels(duels, keepID, removeID)
	}
	for sid, duels := range m.sessionDuels {
		m.sessionDuels[sid] = reassignDuels(duels, keepID, removeID)
	}
	// Active sessions must follow: a session still listing the removed song
	// would keep accepting duels on an ID the solver no longer knows.
	for sid, sess := range m.sessions {
		sess.Songs = reassignSessionSongs(sess.Songs, keepID, removeID)
		sess.PreviousTopK = reassignIDs(sess.PreviousTopK, keepID, removeID)
		m.sessions[sid] = sess
	}

	key := model.ArtistKey(removed.Artist)

	delete(m.songs, removeID)
	ids := m.artistSongs[key]
	for i, id := range ids {
		if id == removeID {
			m.artistSongs[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// reassignDuels rewrites removeID to keepID in place, dropping duels that
// collapse into self-pairs.
func reassignDuels(duels []model.Duel, keepID, removeID string) []model.Duel {
	out := duels[:0]
	for _, d := range duels {
		if d.SongA == removeID {
			d.SongA = keepID
		}
		if d.SongB == removeID {
			d.SongB = keepID
		}
		if d.Winner == removeID {
			d.Winner = keepID
		}
		if d.SongA == d.SongB {
			continue
		}
		out = append(out, d)
	}
	return out
}

// reassignSessionSongs repoints a session's membership at the kept song. If
// the session already holds both sides of the merge, the removed entry is
// dropped so the kept song appears once.
func reassignSessionSongs(songs []model.SessionSong, keepID, removeID string) []model.SessionSong {
	hasKeep := false
	for _, ss := range songs {
		if ss.SongID == keepID {
			hasKeep = true
			break
		}
	}
	out := songs[:0]
	for _, ss := range songs {
		if ss.SongID == removeID {
			if hasKeep {
				continue
			}
			ss.SongID = keepID
		}
		out = append(out, ss)
	}
	return out
}

// reassignIDs rewrites removeID to keepID in an ID list, deduplicating.
func reassignIDs(ids []string, keepID, removeID string) []string {
	hasKeep := false
	for _, id := range ids {
		if id == keepID {
			hasKeep = true
			break
		}
	}
	out := ids[:0]
	for _, id := range ids {
		if id == removeID {
			if hasKeep {
				continue
			}
			id = keepID
		}
		out = append(out, id)
	}
	return out
}

func (m *MemStore) AppendDuel(ctx context.Context, artistKey string, d model.Duel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duels[artistKey] = append(m.duels[artistKey], d)
	if d.SessionID != "" {
		m.sessionDuels[d.SessionID] = append(m.sessionDuels[d.SessionID], d)
	}
	return nil
}

func (m *MemStore) ListSessionDuels(ctx context.Context, sessionID string) ([]model.Duel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Duel, len(m.sessionDuels[sessionID]))
	copy(out, m.sessionDuels[sessionID])
	return out, nil
}

func (m *MemStore) ListArtistDuels(ctx context.Context, artistKey string) ([]model.Duel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Duel, len(m.duels[artistKey]))
	copy(out, m.duels[artistKey])
	return out, nil
}

func (m *MemStore) CountArtistDuels(ctx context.Context, artistKey string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.duels[artistKey]), nil
}

func (m *MemStore) CreateSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	out := s
	out.Songs = append([]model.SessionSong(nil), s.Songs...)
	out.PreviousTopK = append([]string(nil), s.PreviousTopK...)
	return out, nil
}

func (m *MemStore) UpdateSessionRatings(ctx context.Context, id string, songs []model.SessionSong, duelCount int, convergenceScore float64, topK []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status == model.SessionComplete {
		return ErrSessionComplete
	}
	s.Songs = append([]model.SessionSong(nil), songs...)
	s.DuelCount = duelCount
	s.ConvergenceScore = convergenceScore
	s.PreviousTopK = append([]string(nil), topK...)
	m.sessions[id] = s
	return nil
}

func (m *MemStore) MarkSessionComplete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Status = model.SessionComplete
	m.sessions[id] = s
	return nil
}

func (m *MemStore) TopSongs(ctx context.Context, artistKey string, n int) ([]model.Song, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.artistSongs[artistKey]
	out := make([]model.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.songs[id]; ok {
			out = append(out, s)
		}
	}
	sortSongsByStrength(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// sortSongsByStrength orders strongest first; equal strengths break ties by
// ID so pagination is stable.
func sortSongsByStrength(songs []model.Song) {
	sort.Slice(songs, func(i, j int) bool {
		if songs[i].GlobalStrength != songs[j].GlobalStrength {
			return songs[i].GlobalStrength > songs[j].GlobalStrength
		}
		return songs[i].ID < songs[j].ID
	})
}

func (m *MemStore) BulkUpdateGlobalRatings(ctx context.Context, updates []GlobalUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		s, ok := m.songs[u.SongID]
		if !ok {
			continue // merged away since the run snapshotted its input
		}
		s.GlobalStrength = u.Strength
		s.GlobalRating = u.Rating
		s.GlobalVoteCount = u.VoteCount
		m.songs[u.SongID] = s
	}
	return nil
}

func (m *MemStore) AggregateState(ctx context.Context, artistKey string) (model.ArtistState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.aggregates[artistKey]
	if !ok {
		return model.ArtistState{ArtistKey: artistKey}, nil
	}
	return st, nil
}

func (m *MemStore) SaveAggregateState(ctx context.Context, st model.ArtistState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[st.ArtistKey] = st
	return nil
}
