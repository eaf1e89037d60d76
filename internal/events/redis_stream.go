package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStream appends events to a Redis stream (XADD) capped at MaxLen.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisStream) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":       e.Type,
			"collection": e.Collection,
			"record_id":  e.RecordID,
			"data":       string(data),
			"timestamp":  e.At.Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", r.stream, err)
	}
	return nil
}

// Recent reads the tail of the stream with XREVRANGE.
func (r *RedisStream) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 100
	}
	msgs, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", int64(n)).Result()
	if err != nil {
		if err == redis.Nil {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("failed to read stream %s: %w", r.stream, err)
	}
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		raw, _ := m.Values["data"].(string)
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
