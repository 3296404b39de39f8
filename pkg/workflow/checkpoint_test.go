package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCheckpoints(t *testing.T, ttl time.Duration) (*RedisCheckpoints, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCheckpoints(client, ttl), mr
}

func TestRedisCheckpointsLoadSave(t *testing.T) {
	ctx := context.Background()
	cp, mr := newRedisCheckpoints(t, time.Hour)

	_, ok, err := cp.Load(ctx, "run-1", "fetch-video")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cp.Save(ctx, "run-1", "fetch-video", []byte(`{"id":"v1"}`)))
	out, ok, err := cp.Load(ctx, "run-1", "fetch-video")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"v1"}`, string(out))

	assert.Equal(t, `{"id":"v1"}`, mr.HGet("workflow:run:run-1", "fetch-video"))
	_, ok, err = cp.Load(ctx, "run-2", "fetch-video")
	require.NoError(t, err)
	assert.False(t, ok, "runs do not share checkpoints")
}

func TestRedisCheckpointsExpire(t *testing.T) {
	ctx := context.Background()
	cp, mr := newRedisCheckpoints(t, time.Hour)

	require.NoError(t, cp.Save(ctx, "run-1", "fetch-video", []byte(`"a"`)))
	assert.Equal(t, time.Hour, mr.TTL("workflow:run:run-1"))

	mr.FastForward(50 * time.Minute)
	require.NoError(t, cp.Save(ctx, "run-1", "fetch-transcript", []byte(`"b"`)))
	assert.Equal(t, time.Hour, mr.TTL("workflow:run:run-1"), "each save extends the run")

	mr.FastForward(61 * time.Minute)
	_, ok, err := cp.Load(ctx, "run-1", "fetch-video")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCheckpointsDefaultTTL(t *testing.T) {
	cp, _ := newRedisCheckpoints(t, 0)
	assert.Equal(t, 24*time.Hour, cp.ttl)
}

func TestStepReplaysFromRedis(t *testing.T) {
	ctx := context.Background()
	cp, _ := newRedisCheckpoints(t, time.Hour)
	type video struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	fetches, generations := 0, 0

	execute := func(fail bool) (string, error) {
		run := NewRun("title", "run-9", cp, nil)
		v, err := Step(ctx, run, "fetch-video", func(ctx context.Context) (video, error) {
			fetches++
			return video{ID: "v1", Title: "Untitled"}, nil
		})
		if err != nil {
			return "", err
		}
		return Step(ctx, run, "generate-title", func(ctx context.Context) (string, error) {
			generations++
			if fail {
				return "", errors.New("quota exceeded")
			}
			return "Title for " + v.ID, nil
		})
	}

	_, err := execute(true)
	require.ErrorIs(t, err, ErrStepFailed)

	out, err := execute(false)
	require.NoError(t, err)
	assert.Equal(t, "Title for v1", out)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 2, generations)

	_, err = execute(false)
	require.NoError(t, err)
	assert.Equal(t, 2, generations, "a finished run replays every step")
}
