package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"tradesim/pkg/account"
	"tradesim/pkg/sim"
)

// Store provides Pebble-based persistence for users, order documents and
// watchlists. It is constructed once at process start and injected into
// every component that needs it; there is no package-level handle.
//
// Store itself does no locking. Serialization of read-modify-write cycles
// on a user's order document is the lifecycle manager's job.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// getDoc unmarshals the value at key into out. Reports found=false when the
// key does not exist.
func (s *Store) getDoc(key []byte, out any) (bool, error) {
	data, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// setDoc marshals v and writes it at key with a durable sync.
func (s *Store) setDoc(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// ==============================
// Order documents
// ==============================

// LoadOrders loads a user's order document. Returns nil if the user has
// never had orders persisted.
func (s *Store) LoadOrders(email string) (*sim.UserOrders, error) {
	var uo sim.UserOrders
	found, err := s.getDoc(ordersKey(email), &uo)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	uo.Normalize()
	return &uo, nil
}

// SaveOrders replaces a user's order document wholesale. All three
// containers are written in one atomic set, so a failed write leaves the
// previous document intact.
func (s *Store) SaveOrders(email string, uo *sim.UserOrders) error {
	return s.setDoc(ordersKey(email), uo)
}

// UserEmails returns the emails of every user with an order document, for
// the cleanup scan.
func (s *Store) UserEmails() ([]string, error) {
	prefix := []byte(prefixOrders)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	defer iter.Close()

	var emails []string
	for iter.First(); iter.Valid(); iter.Next() {
		emails = append(emails, strings.TrimPrefix(string(iter.Key()), prefixOrders))
	}
	return emails, nil
}

// ==============================
// Users
// ==============================

// SaveUser persists an account record.
func (s *Store) SaveUser(u *account.User) error {
	return s.setDoc(userKey(u.Email), u)
}

// LoadUser loads an account record. Returns nil if the user doesn't exist.
func (s *Store) LoadUser(email string) (*account.User, error) {
	var u account.User
	found, err := s.getDoc(userKey(email), &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

// ==============================
// Watchlists
// ==============================

// SaveWatchlist persists a user's watchlist symbols.
func (s *Store) SaveWatchlist(email string, symbols []string) error {
	return s.setDoc(watchlistKey(email), symbols)
}

// LoadWatchlist loads a user's watchlist. A user without one gets an empty
// list.
func (s *Store) LoadWatchlist(email string) ([]string, error) {
	var symbols []string
	found, err := s.getDoc(watchlistKey(email), &symbols)
	if err != nil {
		return nil, err
	}
	if !found || symbols == nil {
		return []string{}, nil
	}
	return symbols, nil
}

var _ sim.OrderStore = (*Store)(nil)
var _ account.UserStore = (*Store)(nil)
