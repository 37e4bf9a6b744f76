package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/sentinel"
)

const (
	courseKeyPrefix = "registrar:course:"
	tokenKeyPrefix  = "registrar:token:"
)

// Redis keeps each course as a list of JSON records and indexes tokens in
// separate keys. Appends WATCH both keys; the list length is the version token.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed ledger.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (s *Redis) courseKey(courseID string) string {
	return courseKeyPrefix + courseID + ":records"
}

func (s *Redis) tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func (s *Redis) Snapshot(ctx context.Context, courseID string) (*models.Snapshot, error) {
	raw, err := s.client.LRange(ctx, s.courseKey(courseID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot course %s: %w", courseID, err)
	}

	snap := &models.Snapshot{
		CourseID: courseID,
		Records:  make([]models.Record, 0, len(raw)),
		Version:  models.Version(len(raw)),
	}
	for _, item := range raw {
		var rec models.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func (s *Redis) Append(ctx context.Context, record *models.Record, expected models.Version) (int64, error) {
	if err := validateAppend(record, expected); err != nil {
		return 0, err
	}
	listKey := s.courseKey(record.CourseID)
	tokenKey := s.tokenKey(record.IdempotencyToken)

	var sequence int64
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, tokenKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicateToken
		}
		length, err := tx.LLen(ctx, listKey).Result()
		if err != nil {
			return err
		}
		if models.Version(length) != expected {
			return sentinel.ErrConflict
		}

		stored := cloneRecord(*record)
		stored.Sequence = length + 1
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, listKey, data)
			pipe.Set(ctx, tokenKey, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		sequence = stored.Sequence
		return nil
	}, listKey, tokenKey)

	switch {
	case err == nil:
		return sequence, nil
	case errors.Is(err, redis.TxFailedErr):
		return 0, sentinel.ErrConflict
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, ErrDuplicateToken):
		return 0, err
	default:
		return 0, fmt.Errorf("append record: %w", err)
	}
}

func (s *Redis) FindByIdempotencyToken(ctx context.Context, token string) (*models.Record, error) {
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record by token: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
