package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowforge/flowforge/workflow"
)

// RedisConfig holds the connection settings for the Redis history store.
type RedisConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// RedisHistoryStore persists histories in Redis: a string key per history
// with sorted-set indexes per workflow and overall, scored by start time.
type RedisHistoryStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisHistoryStore connects to Redis and returns a store.
func NewRedisHistoryStore(cfg RedisConfig) (*RedisHistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "flowforge:"
	}
	return &RedisHistoryStore{
		client:    client,
		keyPrefix: keyPrefix + "history:",
	}, nil
}

// NewRedisHistoryStoreWithClient wraps an existing client, e.g. a test
// client pointed at miniredis.
func NewRedisHistoryStoreWithClient(client *redis.Client, keyPrefix string) *RedisHistoryStore {
	if keyPrefix == "" {
		keyPrefix = "flowforge:"
	}
	return &RedisHistoryStore{client: client, keyPrefix: keyPrefix + "history:"}
}

// Close closes the underlying client.
func (s *RedisHistoryStore) Close() error { return s.client.Close() }

// Ping checks store health.
func (s *RedisHistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisHistoryStore) dataKey(executionID string) string {
	return s.keyPrefix + "data:" + executionID
}

func (s *RedisHistoryStore) workflowKey(workflowID string) string {
	return s.keyPrefix + "workflow:" + workflowID
}

func (s *RedisHistoryStore) allKey() string {
	return s.keyPrefix + "all"
}

// Save persists a history and updates the indexes.
func (s *RedisHistoryStore) Save(ctx context.Context, history *workflow.ExecutionHistory) error {
	if history == nil || history.ExecutionID == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	score := float64(history.StartTime.UnixNano())
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(history.ExecutionID), data, 0)
	pipe.ZAdd(ctx, s.workflowKey(history.WorkflowID), redis.Z{Score: score, Member: history.ExecutionID})
	pipe.ZAdd(ctx, s.allKey(), redis.Z{Score: score, Member: history.ExecutionID})
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a history by execution ID.
func (s *RedisHistoryStore) Get(ctx context.Context, executionID string) (*workflow.ExecutionHistory, error) {
	data, err := s.client.Get(ctx, s.dataKey(executionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var history workflow.ExecutionHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// ListByWorkflow returns the histories for a workflow, newest first.
func (s *RedisHistoryStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.ExecutionHistory, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.workflowKey(workflowID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.ExecutionHistory, 0, len(ids))
	for _, id := range ids {
		h, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Delete removes a history and its index entries.
func (s *RedisHistoryStore) Delete(ctx context.Context, executionID string) error {
	history, err := s.Get(ctx, executionID)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.dataKey(executionID))
	pipe.ZRem(ctx, s.workflowKey(history.WorkflowID), executionID)
	pipe.ZRem(ctx, s.allKey(), executionID)
	_, err = pipe.Exec(ctx)
	return err
}

// Cleanup removes finished histories whose start time is older than the
// given age.
func (s *RedisHistoryStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	ids, err := s.client.ZRangeByScore(ctx, s.allKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		history, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if !history.Status.IsTerminal() {
			continue
		}
		if err := s.Delete(ctx, id); err == nil {
			count++
		}
	}
	return count, nil
}

var _ HistoryStore = (*RedisHistoryStore)(nil)
