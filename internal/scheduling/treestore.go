package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrSlotTaken is returned by Commit when a guarded path gained a value
// before the transaction could be applied.
var ErrSlotTaken = errors.New("scheduling: slot already booked")

// MultiPathUpdate applies several tree writes as one all-or-nothing call.
// A nil node tombstones its path. Guards lists paths that must remain vacant
// through the commit; a concurrent write to a guard aborts the whole update.
type MultiPathUpdate struct {
	Writes map[string]map[string]any
	Guards []string
}

// TreeStore is the hierarchical ledger: slash-separated paths mapping to
// JSON document nodes.
type TreeStore interface {
	// Get reads one node. A missing path yields (nil, nil).
	Get(ctx context.Context, path string) (map[string]any, error)
	// ListByPrefix returns every node whose path starts with prefix.
	ListByPrefix(ctx context.Context, prefix string) (map[string]map[string]any, error)
	// Commit applies a multi-path update atomically at the client-call level.
	Commit(ctx context.Context, update MultiPathUpdate) error
}

// RedisTreeStore implements TreeStore on Redis. Each path is a key holding a
// JSON value; Commit maps to one MULTI/EXEC transaction, optionally wrapped
// in WATCH on the guard paths so concurrent writers invalidate the commit.
type RedisTreeStore struct {
	client *redis.Client
	tracer trace.Tracer
}

func NewRedisTreeStore(client *redis.Client) *RedisTreeStore {
	if client == nil {
		panic("scheduling: redis client required")
	}
	return &RedisTreeStore{
		client: client,
		tracer: otel.Tracer("agenda.internal.scheduling.treestore"),
	}
}

func (s *RedisTreeStore) Get(ctx context.Context, path string) (map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "treestore.get")
	defer span.End()

	data, err := s.client.Get(ctx, path).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: read %s: %w", path, err)
	}
	var node map[string]any
	if err := json.Unmarshal(data, &node); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: decode node at %s: %w", path, err)
	}
	return node, nil
}

func (s *RedisTreeStore) ListByPrefix(ctx context.Context, prefix string) (map[string]map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "treestore.list")
	defer span.End()

	out := make(map[string]map[string]any)
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		path := iter.Val()
		node, err := s.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		if node != nil {
			out[path] = node
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: scan %s: %w", prefix, err)
	}
	return out, nil
}

func (s *RedisTreeStore) Commit(ctx context.Context, update MultiPathUpdate) error {
	ctx, span := s.tracer.Start(ctx, "treestore.commit")
	defer span.End()

	if len(update.Writes) == 0 {
		return nil
	}

	apply := func(pipe redis.Pipeliner) error {
		for path, node := range update.Writes {
			if node == nil {
				pipe.Del(ctx, path)
				continue
			}
			data, err := json.Marshal(node)
			if err != nil {
				return fmt.Errorf("scheduling: encode node for %s: %w", path, err)
			}
			pipe.Set(ctx, path, data, 0)
		}
		return nil
	}

	var err error
	if len(update.Guards) == 0 {
		_, err = s.client.TxPipelined(ctx, apply)
	} else {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			for _, guard := range update.Guards {
				n, existsErr := tx.Exists(ctx, guard).Result()
				if existsErr != nil {
					return existsErr
				}
				if n > 0 {
					return ErrSlotTaken
				}
			}
			_, txErr := tx.TxPipelined(ctx, apply)
			return txErr
		}, update.Guards...)
		if errors.Is(err, redis.TxFailedErr) {
			err = ErrSlotTaken
		}
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotTaken) {
			return ErrSlotTaken
		}
		return fmt.Errorf("scheduling: commit multi-path update: %w", err)
	}
	return nil
}
