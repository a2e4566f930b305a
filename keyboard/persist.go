package keyboard

import (
	"log/slog"
	"sync"
)

// Settings holds the four persisted fields
type Settings struct {
	ShortcutEnabled bool
	Shortcut        Shortcut
	// BlockingEnabled is written for completeness but never trusted on load.
	BlockingEnabled bool
}

// DefaultSettings returns the settings used when nothing is persisted
func DefaultSettings() Settings {
	return Settings{
		ShortcutEnabled: true,
		Shortcut:        DefaultShortcut,
		BlockingEnabled: false,
	}
}

// Store loads and saves Settings
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// memoryStore is used when New is given a nil Store
type memoryStore struct {
	mu sync.Mutex
	s  Settings
}

func newMemoryStore() *memoryStore {
	return &memoryStore{s: DefaultSettings()}
}

func (m *memoryStore) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.s
	s.BlockingEnabled = false
	return s, nil
}

func (m *memoryStore) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

// snapshot is a Settings value tagged with the mutation it reflects
type snapshot struct {
	seq      uint64
	settings Settings
}

// saver serializes writes to the Store and never lets an older snapshot
// overwrite a newer one. Control API calls write synchronously; the event
// tap thread hands snapshots to a worker through a one-slot queue so it
// never waits on file I/O.
type saver struct {
	store Store

	mu      sync.Mutex
	written uint64

	queue chan snapshot
	done  chan struct{}
}

func newSaver(store Store) *saver {
	return &saver{store: store}
}

// start launches the background worker
func (p *saver) start() {
	p.queue = make(chan snapshot, 1)
	p.done = make(chan struct{})
	go func(queue <-chan snapshot, done chan<- struct{}) {
		defer close(done)
		for s := range queue {
			p.write(s)
		}
	}(p.queue, p.done)
}

// stop drains the queue and waits for the worker. Nothing may enqueue
// after stop is called.
func (p *saver) stop() {
	if p.queue == nil {
		return
	}
	close(p.queue)
	<-p.done
	p.queue = nil
	p.done = nil
}

// enqueue replaces any pending snapshot with s and returns immediately
func (p *saver) enqueue(s snapshot) {
	for {
		select {
		case p.queue <- s:
			return
		default:
		}
		select {
		case <-p.queue:
		default:
		}
	}
}

// write persists s unless a newer snapshot already reached the store
func (p *saver) write(s snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.seq <= p.written {
		return
	}
	if err := p.store.Save(s.settings); err != nil {
		slog.Error("Failed to save settings", "error", err)
		return
	}
	p.written = s.seq
	slog.Debug("Settings saved", "seq", s.seq)
}
