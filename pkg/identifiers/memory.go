package identifiers

import (
	"context"
	"sort"
	"sync"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
)

type participantEntry struct {
	seq     int64
	guid    string
	active  models.CenterIdentity
	history []models.CenterIdentity
}

// MemoryStore is an in-memory Store used in tests and local
// development. A single mutex stands in for the database's constraint
// checks, so check-and-create stays atomic.
type MemoryStore struct {
	mu         sync.Mutex
	nextSeq    int64
	bySeq      map[int64]*participantEntry
	byIdentity map[models.CenterIdentity]int64
	byGUID     map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextSeq:    1,
		bySeq:      make(map[int64]*participantEntry),
		byIdentity: make(map[models.CenterIdentity]int64),
		byGUID:     make(map[string]int64),
	}
}

func (s *MemoryStore) LookupByCenterIdentity(ctx context.Context, identity models.CenterIdentity) (*IdentifierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.byIdentity[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return s.record(seq), nil
}

func (s *MemoryStore) LookupByGUID(ctx context.Context, guid string) (*IdentifierRecord, error) {
	if guid == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.byGUID[guid]
	if !ok {
		return nil, ErrNotFound
	}
	return s.record(seq), nil
}

func (s *MemoryStore) LookupByNACCID(ctx context.Context, naccid string) (*IdentifierRecord, error) {
	seq, err := ParseNACCID(naccid)
	if err != nil {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySeq[seq]; !ok {
		return nil, ErrNotFound
	}
	return s.record(seq), nil
}

func (s *MemoryStore) ListByCenter(ctx context.Context, adcid int) ([]IdentifierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{})
	var seqs []int64
	for identity, seq := range s.byIdentity {
		if identity.ADCID != adcid {
			continue
		}
		if _, ok := seen[seq]; ok {
			continue
		}
		seen[seq] = struct{}{}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	records := make([]IdentifierRecord, 0, len(seqs))
	for _, seq := range seqs {
		records = append(records, *s.record(seq))
	}
	return records, nil
}

func (s *MemoryStore) Create(ctx context.Context, identity models.CenterIdentity, guid string) (*IdentifierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.byIdentity[identity]; ok {
		return nil, &DuplicateIdentityError{Identity: &identity, NACCID: FormatNACCID(seq)}
	}
	if guid != "" {
		if seq, ok := s.byGUID[guid]; ok {
			return nil, &DuplicateIdentityError{GUID: guid, NACCID: FormatNACCID(seq)}
		}
	}

	seq := s.nextSeq
	s.nextSeq++
	s.bySeq[seq] = &participantEntry{seq: seq, guid: guid, active: identity}
	s.byIdentity[identity] = seq
	if guid != "" {
		s.byGUID[guid] = seq
	}
	return s.record(seq), nil
}

func (s *MemoryStore) AddCenterIdentity(ctx context.Context, naccid string, identity models.CenterIdentity) (*IdentifierRecord, error) {
	seq, err := ParseNACCID(naccid)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.bySeq[seq]
	if !ok {
		return nil, ErrNotFound
	}

	if existing, ok := s.byIdentity[identity]; ok {
		if existing == seq {
			return s.record(seq), nil
		}
		return nil, &DuplicateIdentityError{Identity: &identity, NACCID: FormatNACCID(existing)}
	}

	entry.history = append(entry.history, entry.active)
	entry.active = identity
	s.byIdentity[identity] = seq
	return s.record(seq), nil
}

func (s *MemoryStore) record(seq int64) *IdentifierRecord {
	entry := s.bySeq[seq]
	record := &IdentifierRecord{
		NACCID:         FormatNACCID(seq),
		GUID:           entry.guid,
		ActiveIdentity: entry.active,
	}
	record.History = append(record.History, entry.history...)
	return record
}
