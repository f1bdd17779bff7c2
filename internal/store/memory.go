package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. All operations are linearizable;
// Transact runs under the store lock.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]map[string]json.RawMessage
	subs   map[string]map[int]*subscriber
	nextID int
	clock  func() time.Time
	lastTS int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]map[string]json.RawMessage),
		subs:  make(map[string]map[int]*subscriber),
		clock: time.Now,
	}
}

// WithClock replaces the server clock. Intended for tests.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	m.mu.Lock()
	m.clock = clock
	m.mu.Unlock()
	return m
}

func (m *MemoryStore) Get(ctx context.Context, collection string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(collection), nil
}

func (m *MemoryStore) GetRecord(ctx context.Context, path string) (json.RawMessage, error) {
	collection, key, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	collection, key, err := SplitPath(path)
	if err != nil || key == "" {
		return ErrInvalidPath
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(collection, key, raw)
	m.publishLocked(collection)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return m.Transact(ctx, path, func(current json.RawMessage) (any, error) {
		return mergeFields(current, fields)
	})
}

func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	collection, key, err := SplitPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		delete(m.data, collection)
	} else {
		delete(m.data[collection], key)
	}
	m.publishLocked(collection)
	return nil
}

func (m *MemoryStore) Transact(ctx context.Context, path string, fn TxFunc) error {
	collection, key, err := SplitPath(path)
	if err != nil || key == "" {
		return ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var current json.RawMessage
	if raw, ok := m.data[collection][key]; ok {
		current = append(json.RawMessage(nil), raw...)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	raw, err := encode(next)
	if err != nil {
		return err
	}
	m.putLocked(collection, key, raw)
	m.publishLocked(collection)
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string, fn func(Snapshot)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := newSubscriber(fn)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[collection] == nil {
		m.subs[collection] = make(map[int]*subscriber)
	}
	m.subs[collection][id] = sub
	sub.push(m.snapshotLocked(collection))
	m.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[collection], id)
			m.mu.Unlock()
			sub.close()
		})
	}, nil
}

// ServerTimestamp never goes backwards.
func (m *MemoryStore) ServerTimestamp(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.clock().UnixMilli()
	if ts < m.lastTS {
		ts = m.lastTS
	}
	m.lastTS = ts
	return ts, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) putLocked(collection, key string, raw json.RawMessage) {
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]json.RawMessage)
	}
	m.data[collection][key] = raw
}

func (m *MemoryStore) snapshotLocked(collection string) Snapshot {
	records := m.data[collection]
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	SortKeys(keys)
	snap := Snapshot{Collection: collection, Records: make([]Record, 0, len(keys))}
	for _, k := range keys {
		snap.Records = append(snap.Records, Record{Key: k, Value: append(json.RawMessage(nil), records[k]...)})
	}
	return snap
}

// publishLocked enqueues under the store lock so every subscriber sees
// snapshots in write order.
func (m *MemoryStore) publishLocked(collection string) {
	subs := m.subs[collection]
	if len(subs) == 0 {
		return
	}
	snap := m.snapshotLocked(collection)
	for _, sub := range subs {
		sub.push(snap)
	}
}

// subscriber delivers queued snapshots on its own goroutine so a slow
// callback never blocks writers.
type subscriber struct {
	fn     func(Snapshot)
	mu     sync.Mutex
	queue  []Snapshot
	signal chan struct{}
	done   chan struct{}
}

func newSubscriber(fn func(Snapshot)) *subscriber {
	return &subscriber{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) push(snap Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			snap := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.fn(snap)
		}
	}
}

func (s *subscriber) close() {
	close(s.done)
}
