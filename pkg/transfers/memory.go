package transfers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry is the in-memory Registry used in tests and local
// development. Records live in an append-only arena; the index maps ids
// to arena slots and state transitions happen under the mutex.
type MemoryRegistry struct {
	mu      sync.Mutex
	records []*PendingTransfer
	byID    map[string]int
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{byID: make(map[string]int)}
}

func (r *MemoryRegistry) Insert(ctx context.Context, record *PendingTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	stored := *record
	r.records = append(r.records, &stored)
	r.byID[record.ID] = len(r.records) - 1
	return nil
}

func (r *MemoryRegistry) Get(ctx context.Context, id string) (*PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	record := *r.records[i]
	return &record, nil
}

func (r *MemoryRegistry) FindMatchingOutgoing(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error) {
	return r.findMatching(DirectionOutgoing, criteria)
}

func (r *MemoryRegistry) FindMatchingIncoming(ctx context.Context, criteria MatchCriteria) (*PendingTransfer, error) {
	return r.findMatching(DirectionIncoming, criteria)
}

func (r *MemoryRegistry) findMatching(direction Direction, criteria MatchCriteria) (*PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.records {
		if record.Direction != direction || record.State != StateAwaitingMatch {
			continue
		}
		if matches(record, criteria) {
			found := *record
			return &found, nil
		}
	}
	return nil, ErrNoMatch
}

func (r *MemoryRegistry) ClaimMatch(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	record := r.records[i]
	if record.State != StateAwaitingMatch {
		return false, nil
	}
	now := time.Now().UTC()
	record.State = StateMatched
	record.MatchedAt = &now
	return true, nil
}

func (r *MemoryRegistry) MarkMatched(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	record := r.records[i]
	if record.State == StateMatched {
		return nil
	}
	now := time.Now().UTC()
	record.State = StateMatched
	record.MatchedAt = &now
	return nil
}

func (r *MemoryRegistry) ListPending(ctx context.Context, adcid int) ([]PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []PendingTransfer
	for _, record := range r.records {
		if record.State == StateMatched {
			continue
		}
		if adcid != 0 {
			involved := record.ReportedBy == adcid ||
				(record.CounterpartADCID != nil && *record.CounterpartADCID == adcid)
			if !involved {
				continue
			}
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
