package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"idgate/internal/verify/models"
	"idgate/pkg/platform/sentinel"
)

// InMemoryContextStore keys contexts by agency and application token. Used
// in tests and local runs.
type InMemoryContextStore struct {
	mu       sync.RWMutex
	contexts map[[2]string]models.Context
}

func NewInMemoryContextStore() *InMemoryContextStore {
	return &InMemoryContextStore{contexts: make(map[[2]string]models.Context)}
}

// Put registers a context under its token pair.
func (s *InMemoryContextStore) Put(agencyToken, applicationToken string, c models.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[[2]string{agencyToken, applicationToken}] = c
}

func (s *InMemoryContextStore) Resolve(_ context.Context, agencyToken, applicationToken string) (models.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[[2]string{agencyToken, applicationToken}]
	if !ok {
		return models.Context{}, sentinel.ErrNotFound
	}
	return c, nil
}

// InMemoryIdentityStore indexes records by citizen-link code and subject id.
type InMemoryIdentityStore struct {
	mu        sync.RWMutex
	byCI      map[string]models.IdentityRecord
	bySubject map[string]models.IdentityRecord
}

func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{
		byCI:      make(map[string]models.IdentityRecord),
		bySubject: make(map[string]models.IdentityRecord),
	}
}

func (s *InMemoryIdentityStore) FindByCI(_ context.Context, ci string) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byCI[ci]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *InMemoryIdentityStore) FindBySubject(_ context.Context, subjectID string) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.bySubject[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *InMemoryIdentityStore) Create(_ context.Context, rec models.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCI[rec.CI]; exists {
		return sentinel.ErrConflict
	}
	s.byCI[rec.CI] = rec
	s.bySubject[rec.SubjectID] = rec
	return nil
}

func (s *InMemoryIdentityStore) Update(_ context.Context, rec models.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCI[rec.CI]; !exists {
		return sentinel.ErrNotFound
	}
	s.byCI[rec.CI] = rec
	s.bySubject[rec.SubjectID] = rec
	return nil
}

func (s *InMemoryIdentityStore) Deregister(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.bySubject[subjectID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Registered = false
	rec.Photo = nil
	s.bySubject[subjectID] = rec
	s.byCI[rec.CI] = rec
	return nil
}

// InMemoryQRHistoryStore appends redemption attempts and answers the
// paginated history query.
type InMemoryQRHistoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []models.QRHistoryRecord
}

func NewInMemoryQRHistoryStore() *InMemoryQRHistoryStore {
	return &InMemoryQRHistoryStore{nextID: 1}
}

func (s *InMemoryQRHistoryStore) Insert(_ context.Context, rec models.QRHistoryRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *InMemoryQRHistoryStore) MarkOutcome(_ context.Context, id int64, status models.QRHistoryStatus, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = status
			if subjectID != "" {
				s.records[i].SubjectID = subjectID
			}
			s.records[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryQRHistoryStore) Query(_ context.Context, q models.HistoryQuery) (models.HistoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.QRHistoryRecord
	for _, rec := range s.records {
		if rec.InstitutionID != q.InstitutionID {
			continue
		}
		if q.Range == "APP" && rec.ApplicationID != q.ApplicationID {
			continue
		}
		if q.Status != "A" && string(rec.Status) != q.Status {
			continue
		}
		day := rec.CreatedAt.Format(models.DateLayout)
		if day < q.StartYmd || day > q.EndYmd {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if q.Order == "ASC" {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := (q.Page - 1) * q.Limit
	if offset > total {
		offset = total
	}
	end := offset + q.Limit
	if end > total {
		end = total
	}

	return models.HistoryPage{
		Items:   append([]models.QRHistoryRecord{}, matched[offset:end]...),
		HasNext: total-q.Page*q.Limit > 0,
		Total:   total,
	}, nil
}
