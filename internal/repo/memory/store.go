package memory

import (
	"sync"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/message"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/passwordreset"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
)

// Store keeps every table in maps behind one lock, so multi-step operations are
// atomic the same way a database transaction makes them atomic.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq map[string]int64

	users         map[int64]user.User
	tags          map[int64]tag.Tag
	tenders       map[int64]tender.Tender
	pending       map[int64]tender.Tender
	favorites     map[favoriteKey]time.Time
	messages      map[int64]message.Message
	notifications map[int64]notification.Notification
	resets        map[string]passwordreset.Token
}

type favoriteKey struct {
	userID   int64
	tenderID int64
}

func NewStore() *Store {
	return &Store{
		now:           time.Now,
		seq:           make(map[string]int64),
		users:         make(map[int64]user.User),
		tags:          make(map[int64]tag.Tag),
		tenders:       make(map[int64]tender.Tender),
		pending:       make(map[int64]tender.Tender),
		favorites:     make(map[favoriteKey]time.Time),
		messages:      make(map[int64]message.Message),
		notifications: make(map[int64]notification.Notification),
		resets:        make(map[string]passwordreset.Token),
	}
}

// SetClock replaces the time source; tests use it to order rows and expire tokens.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// nextID must be called with the write lock held.
func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *Store) Users() *UsersRepo                   { return &UsersRepo{s: s} }
func (s *Store) Tags() *TagsRepo                     { return &TagsRepo{s: s} }
func (s *Store) Tenders() *TendersRepo               { return &TendersRepo{s: s} }
func (s *Store) Favorites() *FavoritesRepo           { return &FavoritesRepo{s: s} }
func (s *Store) Messages() *MessagesRepo             { return &MessagesRepo{s: s} }
func (s *Store) Notifications() *NotificationsRepo   { return &NotificationsRepo{s: s} }
func (s *Store) PasswordResets() *PasswordResetsRepo { return &PasswordResetsRepo{s: s} }
func (s *Store) Stats() *StatsRepo                   { return &StatsRepo{s: s} }
