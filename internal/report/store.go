package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no report has been published.
var ErrNotFound = errors.New("report not found")

// Store persists scan summaries.
type Store interface {
	Save(ctx context.Context, s *Summary) error
	Get(ctx context.Context, runID string) (*Summary, error)
	Latest(ctx context.Context) (*Summary, error)
}

// RedisStore keeps each summary as JSON under <prefix>report:<run_id> and
// the run ids, newest first, in the <prefix>reports list.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	history int64
}

// NewRedisStore creates a store. A zero ttl keeps reports forever.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		history: 1000,
	}
}

func (s *RedisStore) reportKey(runID string) string {
	return s.prefix + "report:" + runID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "reports"
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sum *Summary) error {
	if sum.RunID == "" {
		return fmt.Errorf("summary has no run id")
	}

	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.reportKey(sum.RunID), data, s.ttl)
	pipe.LPush(ctx, s.indexKey(), sum.RunID)
	pipe.LTrim(ctx, s.indexKey(), 0, s.history-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, runID string) (*Summary, error) {
	data, err := s.client.Get(ctx, s.reportKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &sum, nil
}

// Latest implements Store. Index entries whose report has expired are skipped.
func (s *RedisStore) Latest(ctx context.Context) (*Summary, error) {
	ids, err := s.client.LRange(ctx, s.indexKey(), 0, s.history-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read report index: %w", err)
	}

	for _, id := range ids {
		sum, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return sum, err
	}
	return nil, ErrNotFound
}

// Recent returns up to n run ids, newest first. Ids whose report has expired
// may still be listed.
func (s *RedisStore) Recent(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 || n > s.history {
		n = s.history
	}
	ids, err := s.client.LRange(ctx, s.indexKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read report index: %w", err)
	}
	return ids, nil
}
