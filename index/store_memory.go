package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/claimable/account-registry-backend/interfaces"
)

// MemoryStore is an in-memory Store for single-process deployments and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	bySalt    map[interfaces.Salt]*AccountRecord
	byAddress map[interfaces.AccountAddress]interfaces.Salt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySalt:    make(map[interfaces.Salt]*AccountRecord),
		byAddress: make(map[interfaces.AccountAddress]interfaces.Salt),
	}
}

// RecordCreated stores a creation record. Replayed events are no-ops.
func (s *MemoryStore) RecordCreated(_ context.Context, ev interfaces.AccountCreatedEvent, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySalt[ev.Salt]; exists {
		return nil
	}

	s.bySalt[ev.Salt] = &AccountRecord{
		Salt:           ev.Salt,
		Address:        ev.Address,
		Implementation: ev.Implementation,
		CreatedAt:      at,
	}
	s.byAddress[ev.Address] = ev.Salt
	return nil
}

// RecordClaimed marks the account at ev.Address as claimed.
func (s *MemoryStore) RecordClaimed(_ context.Context, ev interfaces.AccountClaimedEvent, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	salt, ok := s.byAddress[ev.Address]
	if !ok {
		return ErrNotFound
	}

	rec := s.bySalt[salt]
	rec.Claimed = true
	rec.Owner = ev.Owner
	rec.ClaimedAt = at
	return nil
}

// AccountBySalt returns the record for salt.
func (s *MemoryStore) AccountBySalt(_ context.Context, salt interfaces.Salt) (AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.bySalt[salt]
	if !ok {
		return AccountRecord{}, ErrNotFound
	}
	return *rec, nil
}

// AccountByAddress returns the record for a deployed address.
func (s *MemoryStore) AccountByAddress(ctx context.Context, addr interfaces.AccountAddress) (AccountRecord, error) {
	s.mu.RLock()
	salt, ok := s.byAddress[addr]
	s.mu.RUnlock()

	if !ok {
		return AccountRecord{}, ErrNotFound
	}
	return s.AccountBySalt(ctx, salt)
}

// ListAccounts returns records ordered by creation time.
func (s *MemoryStore) ListAccounts(_ context.Context, limit, offset int) ([]AccountRecord, error) {
	s.mu.RLock()
	records := make([]AccountRecord, 0, len(s.bySalt))
	for _, rec := range s.bySalt {
		records = append(records, *rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Address.String() < records[j].Address.String()
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	// Paging values come straight from query strings; clamp rather than panic.
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []AccountRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}
