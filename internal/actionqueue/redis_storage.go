package actionqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bookline:queue"

// RedisStorage keeps the queue in Redis for devices that share one. Each
// action is a JSON string; a sorted set per state, scored by a sequence
// number, keeps enqueue order.
type RedisStorage struct {
	client *redis.Client
	prefix string
	owned  bool
}

// redisRecord is the stored form; Seq is the enqueue position.
type redisRecord struct {
	Seq int64 `json:"seq"`
	QueuedAction
}

// NewRedisStorage uses an existing client. Keys are namespaced by prefix;
// an empty prefix selects the default.
func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}
}

// OpenRedisStorage connects to the Redis URL and checks the connection.
func OpenRedisStorage(ctx context.Context, url string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse queue redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect queue redis: %w", err)
	}
	s := NewRedisStorage(client, "")
	s.owned = true
	return s, nil
}

func (s *RedisStorage) actionKey(id string) string {
	return fmt.Sprintf("%s:action:%s", s.prefix, id)
}

func (s *RedisStorage) stateKey(state State) string {
	return fmt.Sprintf("%s:%s", s.prefix, state)
}

func (s *RedisStorage) Insert(ctx context.Context, a *QueuedAction) (bool, error) {
	seq, err := s.client.Incr(ctx, s.prefix+":seq").Result()
	if err != nil {
		return false, fmt.Errorf("insert queued action: %w", err)
	}
	body, err := json.Marshal(redisRecord{Seq: seq, QueuedAction: *a})
	if err != nil {
		return false, fmt.Errorf("encode queued action: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.actionKey(a.ID), body, 0).Result()
	if err != nil {
		return false, fmt.Errorf("insert queued action: %w", err)
	}
	if !created {
		return false, nil
	}
	if err := s.client.ZAdd(ctx, s.stateKey(a.State), redis.Z{Score: float64(seq), Member: a.ID}).Err(); err != nil {
		return false, fmt.Errorf("index queued action: %w", err)
	}
	return true, nil
}

func (s *RedisStorage) Get(ctx context.Context, id string) (*QueuedAction, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec.QueuedAction, nil
}

func (s *RedisStorage) get(ctx context.Context, id string) (*redisRecord, error) {
	body, err := s.client.Get(ctx, s.actionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queued action: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode queued action %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStorage) List(ctx context.Context, state State) ([]*QueuedAction, error) {
	ids, err := s.client.ZRange(ctx, s.stateKey(state), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list queued actions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.actionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list queued actions: %w", err)
	}

	out := make([]*QueuedAction, 0, len(values))
	for i, v := range values {
		body, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decode queued action %s: %w", ids[i], err)
		}
		out = append(out, &rec.QueuedAction)
	}
	return out, nil
}

func (s *RedisStorage) Due(ctx context.Context, now time.Time) ([]*QueuedAction, error) {
	pending, err := s.List(ctx, StatePending)
	if err != nil {
		return nil, err
	}
	var due []*QueuedAction
	for _, a := range pending {
		if a.IsDue(now) {
			due = append(due, a)
		}
	}
	return due, nil
}

func (s *RedisStorage) Update(ctx context.Context, a *QueuedAction) error {
	rec, err := s.get(ctx, a.ID)
	if err != nil {
		return err
	}
	previous := rec.State
	rec.QueuedAction = *a
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode queued action: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.actionKey(a.ID), body, 0)
		if previous != a.State {
			pipe.ZRem(ctx, s.stateKey(previous), a.ID)
			pipe.ZAdd(ctx, s.stateKey(a.State), redis.Z{Score: float64(rec.Seq), Member: a.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update queued action: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, id string) (bool, error) {
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.actionKey(id))
		pipe.ZRem(ctx, s.stateKey(StatePending), id)
		pipe.ZRem(ctx, s.stateKey(StateQuarantined), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete queued action: %w", err)
	}
	return deleted.Val() > 0, nil
}

// Ping checks the Redis connection.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if this storage created it.
func (s *RedisStorage) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
