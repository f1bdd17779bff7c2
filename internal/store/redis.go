package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 100

// RedisStore keeps each collection in one hash ("<ns>:<collection>") and
// announces writes on "<ns>:changes:<collection>". Conditional writes use
// WATCH/MULTI/EXEC.
type RedisStore struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
}

func NewRedisStore(client *redis.Client, namespace string, timeout time.Duration) *RedisStore {
	if namespace == "" {
		namespace = "ctf"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		timeout:   timeout,
	}
}

func (r *RedisStore) hashKey(collection string) string {
	return fmt.Sprintf("%s:%s", r.namespace, collection)
}

func (r *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:changes:%s", r.namespace, collection)
}

func (r *RedisStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *RedisStore) Get(ctx context.Context, collection string) (Snapshot, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	return r.snapshot(ctx, collection)
}

func (r *RedisStore) snapshot(ctx context.Context, collection string) (Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.hashKey(collection)).Result()
	if err != nil {
		return Snapshot{}, unavailable(err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	SortKeys(keys)
	snap := Snapshot{Collection: collection, Records: make([]Record, 0, len(keys))}
	for _, k := range keys {
		snap.Records = append(snap.Records, Record{Key: k, Value: json.RawMessage(fields[k])})
	}
	return snap, nil
}

func (r *RedisStore) GetRecord(ctx context.Context, path string) (json.RawMessage, error) {
	collection, key, err := SplitPath(path)
	if err != nil || key == "" {
		return nil, ErrInvalidPath
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	data, err := r.client.HGet(ctx, r.hashKey(collection), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, path string, value any) error {
	collection, key, err := SplitPath(path)
	if err != nil || key == "" {
		return ErrInvalidPath
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.hashKey(collection), key, []byte(data))
		pipe.Publish(ctx, r.channel(collection), key)
		return nil
	})
	return unavailable(err)
}

func (r *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return r.Transact(ctx, path, func(current json.RawMessage) (any, error) {
		return mergeFields(current, fields)
	})
}

func (r *RedisStore) Remove(ctx context.Context, path string) error {
	collection, key, err := SplitPath(path)
	if err != nil {
		return err
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if key == "" {
			pipe.Del(ctx, r.hashKey(collection))
		} else {
			pipe.HDel(ctx, r.hashKey(collection), key)
		}
		pipe.Publish(ctx, r.channel(collection), key)
		return nil
	})
	return unavailable(err)
}

// Transact retries on WATCH conflicts; fn may therefore run more than once
// and must not have side effects.
func (r *RedisStore) Transact(ctx context.Context, path string, fn TxFunc) error {
	collection, key, err := SplitPath(path)
	if err != nil || key == "" {
		return ErrInvalidPath
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	hash := r.hashKey(collection)
	var fnErr error
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hash, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}
		if next == nil {
			return nil
		}
		data, err := encode(next)
		if err != nil {
			fnErr = err
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hash, key, []byte(data))
			pipe.Publish(ctx, r.channel(collection), key)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		fnErr = nil
		err := r.client.Watch(ctx, txf, hash)
		if fnErr != nil {
			return fnErr
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			select {
			case <-ctx.Done():
				return unavailable(ctx.Err())
			case <-time.After(time.Duration(i%5) * time.Millisecond):
			}
			continue
		}
		return unavailable(err)
	}
	return ErrContention
}

// Subscribe confirms the pub/sub subscription before reading the initial
// snapshot so no change between the two is missed. Bursts of notifications
// are coalesced into a single re-read.
func (r *RedisStore) Subscribe(ctx context.Context, collection string, fn func(Snapshot)) (func(), error) {
	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(subCtx, r.channel(collection))

	setupCtx, setupCancel := r.bounded(ctx)
	defer setupCancel()
	if _, err := pubsub.Receive(setupCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, unavailable(err)
	}
	initial, err := r.snapshot(setupCtx, collection)
	if err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	msgs := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(initial)
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
			}
		drain:
			for {
				select {
				case _, ok := <-msgs:
					if !ok {
						return
					}
				default:
					break drain
				}
			}
			readCtx, readCancel := r.bounded(subCtx)
			snap, err := r.snapshot(readCtx, collection)
			readCancel()
			if err != nil {
				// The next notification triggers another read.
				continue
			}
			fn(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

func (r *RedisStore) ServerTimestamp(ctx context.Context) (int64, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	t, err := r.client.Time(ctx).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return t.UnixMilli(), nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	return unavailable(r.client.Ping(ctx).Err())
}

// Addr returns the Redis address from the client.
func (r *RedisStore) Addr() string {
	return r.client.Options().Addr
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
