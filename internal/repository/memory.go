package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process, ordered by id. It backs local runs
// without a database and the use case tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*VerificationRecord
	byToken map[string]int
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]int), now: time.Now}
}

// AppendRecord stores a copy of rec after assigning its id.
func (m *MemoryStore) AppendRecord(ctx context.Context, rec *VerificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byToken[rec.Token]; taken {
		return ErrDuplicateToken
	}
	var last int64
	if n := len(m.records); n > 0 {
		last = m.records[n-1].ID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}
	if rec.ReviewStatus == "" {
		rec.ReviewStatus = ReviewPending
	}
	rec.ID = nextID(rec.CreatedAt, last)

	stored := *rec
	m.records = append(m.records, &stored)
	m.byToken[rec.Token] = len(m.records) - 1
	return nil
}

// UpdateReviewState records a human review decision on one record.
func (m *MemoryStore) UpdateReviewState(ctx context.Context, id int64, status ReviewStatus, reason string) (*VerificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexOf(id)
	if !ok {
		return nil, ErrRecordNotFound
	}
	reviewedAt := m.now().UTC()
	rec := m.records[idx]
	rec.ReviewStatus = status
	rec.ReviewReason = reason
	rec.ReviewedAt = &reviewedAt

	out := *rec
	return &out, nil
}

// FindByToken retrieves a record by its verification token.
func (m *MemoryStore) FindByToken(ctx context.Context, token string) (*VerificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byToken[token]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := *m.records[idx]
	return &out, nil
}

// FindByID retrieves a record by id.
func (m *MemoryStore) FindByID(ctx context.Context, id int64) (*VerificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexOf(id)
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := *m.records[idx]
	return &out, nil
}

// List returns copies of the records matching filter in id order.
func (m *MemoryStore) List(ctx context.Context, filter RecordFilter) ([]*VerificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*VerificationRecord, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Matches(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AggregateStats counts records per review status.
func (m *MemoryStore) AggregateStats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats Stats
	var confidence int64
	for _, rec := range m.records {
		stats.Total++
		confidence += int64(rec.Confidence)
		if rec.FromPartner {
			stats.Partner++
		}
		switch rec.ReviewStatus {
		case ReviewPending:
			stats.Pending++
		case ReviewApproved:
			stats.Approved++
		case ReviewRejected:
			stats.Rejected++
		case ReviewInfoRequested:
			stats.InfoRequested++
		}
	}
	if stats.Total > 0 {
		stats.AverageConfidence = float64(confidence) / float64(stats.Total)
	}
	return &stats, nil
}

// records are sorted by id, so a binary search finds the slot.
func (m *MemoryStore) indexOf(id int64) (int, bool) {
	lo, hi := 0, len(m.records)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case m.records[mid].ID == id:
			return mid, true
		case m.records[mid].ID < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}
