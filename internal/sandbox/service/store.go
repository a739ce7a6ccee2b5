package service

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/domain"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

var (
	ErrNotFound      = errors.New("sandbox: not found")
	ErrAlreadyExists = errors.New("sandbox: already exists")
)

// Store is the sandbox's in-memory state. Resources are kept in their wire
// shape since the sandbox exists to serve the SDK.
type Store struct {
	mu sync.Mutex

	accounts   map[int64]*domain.Account
	byEmail    map[string]int64
	challenges map[string]*domain.Challenge
	grants     map[string]domain.Grant
	orders     map[int64]*portalsdk.Order
	transfers  map[int64]*portalsdk.Transfer
	webhooks   map[int64]*webhookRecord

	seq int64
}

type webhookRecord struct {
	portalsdk.Webhook
	OwnerID int64
	Secret  string
}

func NewStore() *Store {
	return &Store{
		accounts:   make(map[int64]*domain.Account),
		byEmail:    make(map[string]int64),
		challenges: make(map[string]*domain.Challenge),
		grants:     make(map[string]domain.Grant),
		orders:     make(map[int64]*portalsdk.Order),
		transfers:  make(map[int64]*portalsdk.Transfer),
		webhooks:   make(map[int64]*webhookRecord),
	}
}

// nextID must be called with mu held.
func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateAccount(a domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(a.Email)
	if _, ok := s.byEmail[key]; ok {
		return domain.Account{}, ErrAlreadyExists
	}
	a.ID = s.nextID()
	s.accounts[a.ID] = &a
	s.byEmail[key] = a.ID
	return a, nil
}

func (s *Store) AccountByID(id int64) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return *a, nil
}

func (s *Store) AccountByEmail(email string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return *s.accounts[id], nil
}

func (s *Store) ListAccounts() []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Account, 0, len(s.accounts))
	for id := int64(1); id <= s.seq; id++ {
		if a, ok := s.accounts[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// UpdateAccount replaces the account, keeping the email index in sync.
func (s *Store) UpdateAccount(a domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	oldKey, newKey := normalizeEmail(cur.Email), normalizeEmail(a.Email)
	if oldKey != newKey {
		if _, taken := s.byEmail[newKey]; taken {
			return ErrAlreadyExists
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = a.ID
	}
	s.accounts[a.ID] = &a
	return nil
}

func (s *Store) PutChallenge(c domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.ID] = &c
}

// UpdateChallenge applies fn to the challenge under the lock. Returning
// remove=true deletes it afterwards.
func (s *Store) UpdateChallenge(id string, fn func(c *domain.Challenge) (remove bool)) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return domain.Challenge{}, ErrNotFound
	}
	if fn(c) {
		delete(s.challenges, id)
	}
	return *c, nil
}

func (s *Store) PutGrant(g domain.Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.Fingerprint] = g
}

func (s *Store) Grant(fingerprint string) (domain.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[fingerprint]
	if !ok {
		return domain.Grant{}, ErrNotFound
	}
	return g, nil
}

func (s *Store) DeleteGrant(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, fingerprint)
}

// DeleteExpired drops challenges and grants past their expiry and returns
// how many were removed.
func (s *Store) DeleteExpired(now time.Time) (challenges, grants int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.challenges {
		if !now.Before(c.ExpiresAt) {
			delete(s.challenges, id)
			challenges++
		}
	}
	for fp, g := range s.grants {
		if !now.Before(g.ExpiresAt) {
			delete(s.grants, fp)
			grants++
		}
	}
	return challenges, grants
}
