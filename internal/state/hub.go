// Package state fans store change notifications out to in-process observers.
package state

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

// Observer receives full collection snapshots. Each call replaces whatever
// the observer saw before for that collection.
type Observer func(store.Snapshot)

// Trigger runs synchronously, in store emission order, for every snapshot
// of the collection it was registered for.
type Trigger func(ctx context.Context, snap store.Snapshot)

// Seeder initialises an empty challenges collection.
type Seeder interface {
	SeedChallenges(ctx context.Context) error
}

type Hub struct {
	store  store.Store
	seeder Seeder
	log    logging.Logger

	mu        sync.Mutex
	latest    map[string]store.Snapshot
	observers map[string]*mailbox
	triggers  map[string][]Trigger
	unsubs    []func()
	seeding   bool
}

func NewHub(s store.Store, seeder Seeder, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{
		store:     s,
		seeder:    seeder,
		log:       log.With("component", "hub"),
		latest:    make(map[string]store.Snapshot),
		observers: make(map[string]*mailbox),
		triggers:  make(map[string][]Trigger),
	}
}

// OnSnapshot registers a trigger for collection. Register before Start.
func (h *Hub) OnSnapshot(collection string, t Trigger) {
	h.mu.Lock()
	h.triggers[collection] = append(h.triggers[collection], t)
	h.mu.Unlock()
}

// Start subscribes to every watched collection.
func (h *Hub) Start(ctx context.Context) error {
	for _, collection := range store.Collections {
		unsub, err := h.store.Subscribe(ctx, collection, h.dispatch)
		if err != nil {
			h.Close()
			return err
		}
		h.mu.Lock()
		h.unsubs = append(h.unsubs, unsub)
		h.mu.Unlock()
	}
	h.log.Info(ctx, "hub started", "collections", len(store.Collections))
	return nil
}

// Close unsubscribes from the store and stops every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	boxes := h.observers
	h.observers = make(map[string]*mailbox)
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, box := range boxes {
		box.close()
	}
}

// Attach registers fn and immediately queues the current snapshot of every
// collection seen so far. The returned id identifies the observer; detach
// stops delivery.
func (h *Hub) Attach(fn Observer) (id string, detach func()) {
	box := newMailbox(fn)
	id = uuid.NewString()

	h.mu.Lock()
	h.observers[id] = box
	for _, snap := range h.latest {
		box.put(snap)
	}
	h.mu.Unlock()

	go box.run()

	var once sync.Once
	return id, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.observers, id)
			h.mu.Unlock()
			box.close()
		})
	}
}

// Snapshot returns the latest snapshot of collection, if one arrived.
func (h *Hub) Snapshot(collection string) (store.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap, ok := h.latest[collection]
	return snap, ok
}

// Observers reports how many observers are attached.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) dispatch(snap store.Snapshot) {
	ctx := context.Background()

	h.mu.Lock()
	h.latest[snap.Collection] = snap
	for _, box := range h.observers {
		box.put(snap)
	}
	triggers := append([]Trigger(nil), h.triggers[snap.Collection]...)
	seed := snap.Collection == store.CollectionChallenges && snap.Empty() && h.seeder != nil && !h.seeding
	if seed {
		h.seeding = true
	}
	h.mu.Unlock()

	if seed {
		if err := h.seeder.SeedChallenges(ctx); err != nil {
			h.log.Error(ctx, "seeding challenges failed", "error", err)
		}
		h.mu.Lock()
		h.seeding = false
		h.mu.Unlock()
	}

	for _, t := range triggers {
		t(ctx, snap)
	}
}

// mailbox holds at most one undelivered snapshot per collection. A newer
// snapshot overwrites an older undelivered one, so a slow observer skips
// intermediate states but never goes backwards.
type mailbox struct {
	fn      Observer
	mu      sync.Mutex
	pending map[string]store.Snapshot
	order   []string
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newMailbox(fn Observer) *mailbox {
	return &mailbox{
		fn:      fn,
		pending: make(map[string]store.Snapshot),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (m *mailbox) put(snap store.Snapshot) {
	m.mu.Lock()
	if _, queued := m.pending[snap.Collection]; !queued {
		m.order = append(m.order, snap.Collection)
	}
	m.pending[snap.Collection] = snap
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() (store.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return store.Snapshot{}, false
	}
	collection := m.order[0]
	m.order = m.order[1:]
	snap := m.pending[collection]
	delete(m.pending, collection)
	return snap, true
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}
		for {
			snap, ok := m.take()
			if !ok {
				break
			}
			select {
			case <-m.done:
				return
			default:
			}
			m.fn(snap)
		}
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}
