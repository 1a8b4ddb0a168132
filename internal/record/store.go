// Package record is the persistence collaborator: the order record that
// owns the committed pickup-point id and the delivery context. The widget
// writes it on commit/clear and hears about outside edits through an
// fsnotify watcher.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/logging"
)

// Record is the on-disk shape of the order record.
type Record struct {
	Delivery struct {
		City        string `toml:"city"`
		CountryCode string `toml:"country_code"`
	} `toml:"delivery"`
	PickupPoint struct {
		ID    string `toml:"id"`
		Label string `toml:"label"`
	} `toml:"pickup_point"`
}

// Store reads and writes one order record and watches it for external
// changes.
type Store struct {
	path string
	bus  eventbus.EventBus

	mu      sync.Mutex
	current Record

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Open loads the record at path (a missing file reads as empty) and
// starts watching it. Close must be called on teardown.
func Open(path string, bus eventbus.EventBus) (*Store, error) {
	s := &Store{path: path, bus: bus, done: make(chan struct{})}

	rec, err := readRecord(path)
	if err != nil {
		return nil, err
	}
	s.current = rec

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch record: %w", err)
	}
	// Watch the directory, not the file: editors replace files by rename
	// and a direct file watch goes dead after the first save.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch record dir %s: %w", dir, err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.watch()

	return s, nil
}

// ReadCurrentValue returns the persisted point id, or nil when the record
// holds no selection.
func (s *Store) ReadCurrentValue() *domain.PointID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.PickupPoint.ID == "" {
		return nil
	}
	id := domain.PointID(s.current.PickupPoint.ID)
	return &id
}

// Context returns the delivery context held by the record.
func (s *Store) Context() domain.ContextSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ContextSnapshot{
		CityName:    s.current.Delivery.City,
		CountryCode: s.current.Delivery.CountryCode,
	}
}

// Update writes a new bound value (nil clears the selection) back to the
// record file. The write updates the store's own view first, so the
// watcher does not re-announce it as an external change.
func (s *Store) Update(value *domain.BoundValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil {
		s.current.PickupPoint.ID = ""
		s.current.PickupPoint.Label = ""
	} else {
		s.current.PickupPoint.ID = string(value.ID)
		s.current.PickupPoint.Label = value.DisplayLabel
	}

	data, err := toml.Marshal(s.current)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// Close stops the watcher. Safe to call more than once.
func (s *Store) Close() {
	s.once.Do(func() {
		close(s.done)
		s.watcher.Close()
	})
	s.wg.Wait()
}

// watch reloads the record on file events and publishes a change
// notification when the persisted value or context actually differs.
func (s *Store) watch() {
	defer s.wg.Done()

	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.GetLogger().Warn("record watcher error", zap.Error(err))
		case <-s.done:
			return
		}
	}
}

func (s *Store) reload() {
	rec, err := readRecord(s.path)
	if err != nil {
		logging.GetLogger().Warn("record reload failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	changed := rec != s.current
	s.current = rec
	s.mu.Unlock()

	if !changed {
		return
	}

	var boundID *domain.PointID
	if rec.PickupPoint.ID != "" {
		id := domain.PointID(rec.PickupPoint.ID)
		boundID = &id
	}
	s.bus.Publish(eventbus.RecordChangedEvent{
		BoundID: boundID,
		Context: domain.ContextSnapshot{
			CityName:    rec.Delivery.City,
			CountryCode: rec.Delivery.CountryCode,
		},
	})
}

func readRecord(path string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read record: %w", err)
	}
	if err := toml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse record: %w", err)
	}
	return rec, nil
}
