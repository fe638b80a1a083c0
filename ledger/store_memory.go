// SPDX-License-Identifier: GPL-3.0-only

package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"silently-server/models"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts and events in process memory. It is used by
// tests and by local runs without a database.
type MemoryStore struct {
	mu sync.RWMutex

	nextAccountID uint
	nextEventID   uint

	accounts   map[uint]*models.Account
	events     []models.UsageEvent
	references map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[uint]*models.Account),
		events:     make([]models.UsageEvent, 0),
		references: make(map[string]struct{}),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, acct *models.Account, events []models.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Email == acct.Email {
			return ErrAlreadyExists
		}
	}
	if acct.LicenseKey != nil && s.licenseHolder(*acct.LicenseKey) != 0 {
		return ErrLicenseKeyTaken
	}

	s.nextAccountID++
	now := time.Now()
	acct.ID = s.nextAccountID
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	s.accounts[acct.ID] = cloneAccount(acct)
	for i := range events {
		events[i].AccountID = acct.ID
		s.appendLocked(&events[i], now)
	}
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id uint) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acct, ok := s.accounts[id]; ok {
		return cloneAccount(acct), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if acct.Email == email {
			return cloneAccount(acct), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindAccountByLicenseKey(_ context.Context, key string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key == "" {
		return nil, ErrNotFound
	}
	if id := s.licenseHolder(key); id != 0 {
		return cloneAccount(s.accounts[id]), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindAccountByStripeCustomer(_ context.Context, customerID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if customerID == "" {
		return nil, ErrNotFound
	}
	for _, acct := range s.accounts {
		if acct.StripeCustomerID != nil && *acct.StripeCustomerID == customerID {
			return cloneAccount(acct), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateAccount(_ context.Context, id uint, mutate MutateFunc) (*models.Account, []models.UsageEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, nil, ErrNotFound
	}

	next := cloneAccount(current)
	events, err := mutate(next)
	if err != nil {
		return nil, nil, err
	}

	if next.LicenseKey != nil {
		if holder := s.licenseHolder(*next.LicenseKey); holder != 0 && holder != id {
			return nil, nil, ErrLicenseKeyTaken
		}
	}
	seen := make(map[string]struct{}, len(events))
	for _, event := range events {
		if event.Reference == nil {
			continue
		}
		if _, dup := s.references[*event.Reference]; dup {
			return nil, nil, ErrDuplicatePayment
		}
		if _, dup := seen[*event.Reference]; dup {
			return nil, nil, ErrDuplicatePayment
		}
		seen[*event.Reference] = struct{}{}
	}

	now := time.Now()
	next.UpdatedAt = now
	s.accounts[id] = next
	for i := range events {
		events[i].AccountID = id
		s.appendLocked(&events[i], now)
	}
	return cloneAccount(next), events, nil
}

func (s *MemoryStore) AppendUsageEvent(_ context.Context, event *models.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[event.AccountID]; !ok {
		return ErrNotFound
	}
	if event.Reference != nil {
		if _, dup := s.references[*event.Reference]; dup {
			return ErrDuplicatePayment
		}
	}
	s.appendLocked(event, time.Now())
	return nil
}

func (s *MemoryStore) ListUsageEvents(_ context.Context, accountID uint, limit int) ([]models.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UsageEvent, 0)
	for _, event := range s.events {
		if event.AccountID == accountID {
			out = append(out, event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) appendLocked(event *models.UsageEvent, now time.Time) {
	s.nextEventID++
	event.ID = s.nextEventID
	if event.EID == uuid.Nil {
		event.EID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.Reference != nil {
		s.references[*event.Reference] = struct{}{}
	}
	s.events = append(s.events, *event)
}

func (s *MemoryStore) licenseHolder(key string) uint {
	for id, acct := range s.accounts {
		if acct.LicenseKey != nil && *acct.LicenseKey == key {
			return id
		}
	}
	return 0
}

func cloneAccount(acct *models.Account) *models.Account {
	c := *acct
	if acct.LicenseKey != nil {
		key := *acct.LicenseKey
		c.LicenseKey = &key
	}
	if acct.PlanExpiry != nil {
		exp := *acct.PlanExpiry
		c.PlanExpiry = &exp
	}
	if acct.HardwareHash != nil {
		h := *acct.HardwareHash
		c.HardwareHash = &h
	}
	if acct.StripeCustomerID != nil {
		id := *acct.StripeCustomerID
		c.StripeCustomerID = &id
	}
	return &c
}
