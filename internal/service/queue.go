package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// enqueue appends JSON-encoded jobs to a worker queue in one round trip.
func enqueue[T any](ctx context.Context, rdb *redis.Client, queue string, jobs ...T) error {
	if len(jobs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(jobs))
	for _, j := range jobs {
		raw, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		values = append(values, raw)
	}
	return rdb.RPush(ctx, queue, values...).Err()
}
