package memory

import (
	"sync"
	"time"

	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

// historyCap bounds persisted conversations per user, most recent first.
const historyCap = 50

// PendingSession is a created-but-not-yet-attached voice session record.
type PendingSession struct {
	ID        string
	UserID    string
	Persona   types.PersonaConfig
	CreatedAt time.Time
	Attached  bool
}

// Store holds session records and conversation history in memory.
type Store struct {
	sessions sync.Map // id -> *PendingSession

	histMu  sync.Mutex
	history map[string][]types.HistoryItem
}

func NewStore() *Store {
	return &Store{history: map[string][]types.HistoryItem{}}
}

func (s *Store) SaveSession(p *PendingSession) {
	s.sessions.Store(p.ID, p)
}

func (s *Store) GetSession(id string) (*PendingSession, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*PendingSession), true
}

func (s *Store) DeleteSession(id string) {
	s.sessions.Delete(id)
}

// AppendHistory prepends one finished conversation for a user, dropping the
// oldest entries beyond the cap.
func (s *Store) AppendHistory(userID string, item types.HistoryItem) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	items := append([]types.HistoryItem{item}, s.history[userID]...)
	if len(items) > historyCap {
		items = items[:historyCap]
	}
	s.history[userID] = items
}

// History returns a copy of the user's persisted conversations.
func (s *Store) History(userID string) []types.HistoryItem {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	return append([]types.HistoryItem(nil), s.history[userID]...)
}
