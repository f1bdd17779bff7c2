// Package store is the adapter over the shared real-time key-value store.
//
// Data is laid out as top-level collections of JSON records addressed by
// "<collection>/<key>" paths. Every write is announced to subscribers of the
// collection, which receive the full collection snapshot.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	CollectionChallenges  = "challenges"
	CollectionLeaderboard = "leaderboard"
	CollectionUsers       = "users"
)

// Collections lists the watched collections.
var Collections = []string{CollectionChallenges, CollectionLeaderboard, CollectionUsers}

var (
	ErrNotFound    = errors.New("store: record not found")
	ErrUnavailable = errors.New("store: unavailable")
	ErrContention  = errors.New("store: transaction retries exhausted")
	ErrInvalidPath = errors.New("store: invalid path")
)

type Record struct {
	Key   string
	Value json.RawMessage
}

// Snapshot is the full content of one collection at a point in time.
// Records are ordered by SortKeys.
type Snapshot struct {
	Collection string
	Records    []Record
}

func (s Snapshot) Empty() bool {
	return len(s.Records) == 0
}

// Lookup returns the raw record for key.
func (s Snapshot) Lookup(key string) (json.RawMessage, bool) {
	for _, r := range s.Records {
		if r.Key == key {
			return r.Value, true
		}
	}
	return nil, false
}

// TxFunc receives the current record (nil when absent) and returns the value
// to write. A nil value with a nil error leaves the record untouched. Any
// error aborts the transaction and is returned to the caller unchanged.
type TxFunc func(current json.RawMessage) (any, error)

// Store is the contract the engine needs from the shared store.
type Store interface {
	// Get returns the snapshot of a collection; an absent collection yields
	// an empty snapshot.
	Get(ctx context.Context, collection string) (Snapshot, error)
	// GetRecord returns ErrNotFound for a missing record.
	GetRecord(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the record, creating it if absent. A nil
	// field value deletes that field.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Remove deletes a record or, given a bare collection name, the whole
	// collection.
	Remove(ctx context.Context, path string) error
	// Subscribe delivers the current snapshot immediately and then one
	// snapshot per change, in emission order. The returned func unsubscribes.
	Subscribe(ctx context.Context, collection string, fn func(Snapshot)) (func(), error)
	// ServerTimestamp is the store clock in unix milliseconds.
	ServerTimestamp(ctx context.Context) (int64, error)
}

// Transactor is implemented by stores that support conditional writes.
type Transactor interface {
	Transact(ctx context.Context, path string, fn TxFunc) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Path joins a collection and key.
func Path(collection, key string) string {
	return collection + "/" + key
}

// SplitPath splits a path into collection and key. key is empty for a bare
// collection path.
func SplitPath(path string) (collection, key string, err error) {
	collection, key, _ = strings.Cut(path, "/")
	if collection == "" || strings.Contains(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return collection, key, nil
}

// SortKeys orders keys the way the store emits them: integer keys ascending
// first, then the rest lexicographically.
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

// mergeFields applies Update semantics to a raw JSON object.
func mergeFields(current json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, fmt.Errorf("merge into non-object record: %w", err)
		}
		if obj == nil {
			obj = map[string]json.RawMessage{}
		}
	}
	for k, v := range fields {
		if v == nil {
			delete(obj, k)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}
