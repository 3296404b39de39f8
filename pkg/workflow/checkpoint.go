package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkpointKeyPrefix = "workflow:run:"

// Checkpoints persists step outputs per run so a retried run can skip completed steps.
type Checkpoints interface {
	// Load returns the stored output of step, and false when the step has not completed.
	Load(ctx context.Context, runID, step string) ([]byte, bool, error)
	Save(ctx context.Context, runID, step string, output []byte) error
}

// RedisCheckpoints stores each run as a Redis hash of step name to JSON output.
type RedisCheckpoints struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCheckpoints creates a Redis checkpoint store. Run hashes expire ttl after the last save.
func NewRedisCheckpoints(client *redis.Client, ttl time.Duration) *RedisCheckpoints {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCheckpoints{client: client, ttl: ttl}
}

func checkpointKey(runID string) string {
	return checkpointKeyPrefix + runID
}

func (r *RedisCheckpoints) Load(ctx context.Context, runID, step string) ([]byte, bool, error) {
	out, err := r.client.HGet(ctx, checkpointKey(runID), step).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint %s/%s: %w", runID, step, err)
	}
	return out, true, nil
}

func (r *RedisCheckpoints) Save(ctx context.Context, runID, step string, output []byte) error {
	key := checkpointKey(runID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, step, output)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", runID, step, err)
	}
	return nil
}

// MemoryCheckpoints keeps checkpoints in process memory.
type MemoryCheckpoints struct {
	mu   sync.RWMutex
	runs map[string]map[string][]byte
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{runs: make(map[string]map[string][]byte)}
}

func (m *MemoryCheckpoints) Load(_ context.Context, runID, step string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, ok := m.runs[runID][step]
	return out, ok, nil
}

func (m *MemoryCheckpoints) Save(_ context.Context, runID, step string, output []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps, ok := m.runs[runID]
	if !ok {
		steps = make(map[string][]byte)
		m.runs[runID] = steps
	}
	steps[step] = append([]byte(nil), output...)
	return nil
}
