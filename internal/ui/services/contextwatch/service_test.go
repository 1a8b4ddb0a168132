package contextwatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/invoke"
	"pickpoint/internal/mapkit"
	"pickpoint/internal/ui/services/mapsync"
)

type recorderBus struct {
	mu     sync.Mutex
	events []eventbus.DomainEvent
}

func (r *recorderBus) Publish(e eventbus.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorderBus) Subscribe(eventbus.EventType, eventbus.EventHandler) func() {
	return func() {}
}

func (r *recorderBus) Close() {}

func (r *recorderBus) ofType(t eventbus.EventType) []eventbus.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.DomainEvent
	for _, e := range r.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeDirectory struct {
	mu       sync.Mutex
	listings []string
}

func (f *fakeDirectory) SearchPoints(_ context.Context, cityName, _, _ string, _ int) ([]domain.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = append(f.listings, cityName)
	return nil, nil
}

func (f *fakeDirectory) FetchPointByID(context.Context, domain.PointID) (*domain.Point, error) {
	return nil, nil
}

func (f *fakeDirectory) listed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.listings))
	copy(out, f.listings)
	return out
}

func snapshot(city, country string) domain.ContextSnapshot {
	return domain.ContextSnapshot{CityName: city, CountryCode: country}
}

func newTestWatcher(debounce time.Duration) (*Service, *recorderBus, *fakeDirectory) {
	bus := &recorderBus{}
	dir := &fakeDirectory{}
	mapsvc := mapsync.NewService(bus, dir, mapkit.Options{},
		domain.Coordinates{Latitude: 55.7558, Longitude: 37.6173}, 10, 200)
	return NewService(bus, mapsvc, invoke.New(debounce)), bus, dir
}

func TestRepeatedIdenticalSnapshotsAreIgnored(t *testing.T) {
	svc, bus, _ := newTestWatcher(time.Millisecond)

	snap := snapshot("Moscow", "RU")
	svc.OnSnapshot(snap)
	svc.OnSnapshot(snap)
	svc.OnSnapshot(snap)

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventContextChanged)) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, bus.ofType(eventbus.EventContextChanged), 1)
	assert.Equal(t, snap, svc.Current())
}

func TestChangeCarriesPreviousAndCurrent(t *testing.T) {
	svc, bus, _ := newTestWatcher(time.Millisecond)

	svc.OnSnapshot(snapshot("Moscow", "RU"))
	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventContextChanged)) == 1
	}, time.Second, 5*time.Millisecond)

	svc.OnSnapshot(snapshot("Tver", "RU"))
	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventContextChanged)) == 2
	}, time.Second, 5*time.Millisecond)

	ev := bus.ofType(eventbus.EventContextChanged)[1].(eventbus.ContextChangedEvent)
	assert.Equal(t, "Moscow", ev.Previous.CityName)
	assert.Equal(t, "Tver", ev.Current.CityName)
}

func TestCountryChangeAloneIsAChange(t *testing.T) {
	svc, bus, _ := newTestWatcher(time.Millisecond)

	svc.OnSnapshot(snapshot("Moscow", "RU"))
	svc.OnSnapshot(snapshot("Moscow", "KZ"))

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventContextChanged)) >= 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "KZ", svc.Current().CountryCode)
}

func TestRapidFlappingSettlesOnce(t *testing.T) {
	svc, bus, _ := newTestWatcher(20 * time.Millisecond)

	svc.OnSnapshot(snapshot("Moscow", "RU"))
	svc.OnSnapshot(snapshot("Tver", "RU"))
	svc.OnSnapshot(snapshot("Kazan", "RU"))

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventContextChanged)) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	changed := bus.ofType(eventbus.EventContextChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "Kazan", changed[0].(eventbus.ContextChangedEvent).Current.CityName)
}

func TestApplyChangeTriggersCityListing(t *testing.T) {
	svc, bus, dir := newTestWatcher(time.Millisecond)

	svc.ApplyChange(eventbus.ContextChangedEvent{
		Current: snapshot("Tver", "RU"),
	})

	require.Eventually(t, func() bool {
		return len(dir.listed()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Tver", dir.listed()[0])

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventAmbientUpdated)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestApplyChangeEmptyCitySkipsListing(t *testing.T) {
	svc, _, dir := newTestWatcher(time.Millisecond)

	svc.ApplyChange(eventbus.ContextChangedEvent{
		Previous: snapshot("Moscow", "RU"),
		Current:  snapshot("", ""),
	})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, dir.listed())
}

// Search dispatch goroutines read Current while the update loop feeds
// snapshots in; run with -race.
func TestCurrentIsSafeUnderConcurrentSnapshots(t *testing.T) {
	svc, _, _ := newTestWatcher(time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			svc.OnSnapshot(snapshot(fmt.Sprintf("City-%d", i), "RU"))
		}
	}()
	for i := 0; i < 500; i++ {
		_ = svc.Current()
	}
	<-done

	assert.Equal(t, "City-499", svc.Current().CityName)
}

func TestCloseDropsPendingAnnouncement(t *testing.T) {
	svc, bus, _ := newTestWatcher(20 * time.Millisecond)

	svc.OnSnapshot(snapshot("Moscow", "RU"))
	svc.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, bus.ofType(eventbus.EventContextChanged))
}
