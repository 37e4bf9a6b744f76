package ledger

import (
	"context"
	"sync"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/sentinel"
)

type tokenRef struct {
	courseID string
	index    int
}

// Memory is an in-process ledger. It backs single-node development and tests;
// the version token is the number of records in the course.
type Memory struct {
	mu      sync.RWMutex
	courses map[string][]models.Record
	tokens  map[string]tokenRef
}

func NewMemory() *Memory {
	return &Memory{
		courses: make(map[string][]models.Record),
		tokens:  make(map[string]tokenRef),
	}
}

func (m *Memory) Snapshot(ctx context.Context, courseID string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.courses[courseID]
	out := make([]models.Record, len(records))
	for i, r := range records {
		out[i] = cloneRecord(r)
	}
	return &models.Snapshot{
		CourseID: courseID,
		Records:  out,
		Version:  models.Version(len(records)),
	}, nil
}

func (m *Memory) Append(ctx context.Context, record *models.Record, expected models.Version) (int64, error) {
	if err := validateAppend(record, expected); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[record.IdempotencyToken]; ok {
		return 0, ErrDuplicateToken
	}
	records := m.courses[record.CourseID]
	if models.Version(len(records)) != expected {
		return 0, sentinel.ErrConflict
	}

	stored := cloneRecord(*record)
	stored.Sequence = int64(len(records)) + 1
	m.courses[record.CourseID] = append(records, stored)
	m.tokens[record.IdempotencyToken] = tokenRef{courseID: record.CourseID, index: len(records)}
	return stored.Sequence, nil
}

func (m *Memory) FindByIdempotencyToken(ctx context.Context, token string) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.tokens[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := cloneRecord(m.courses[ref.courseID][ref.index])
	return &rec, nil
}
