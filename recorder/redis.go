package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/proof"
)

// RedisRecorder keys bundles by run and content hash. Recording the same
// semantic outcome twice overwrites the same key, which is exactly the
// content-addressing property.
type RedisRecorder struct {
	client *redis.Client
	ttl    time.Duration // 0 = keep forever
}

// NewRedisRecorder connects and verifies the connection.
func NewRedisRecorder(addr string, password string, db int, ttl time.Duration) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisRecorder{client: client, ttl: ttl}, nil
}

func (r *RedisRecorder) Record(ctx context.Context, runID string, bundle *proof.Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		observability.RecorderWrites.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("marshal bundle: %w", err)
	}

	key := fmt.Sprintf("reflexcore:proofs:%s:%s", runID, bundle.BundleHash)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		observability.RecorderWrites.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("store bundle: %w", err)
	}
	observability.RecorderWrites.WithLabelValues("redis", "ok").Inc()
	return nil
}
