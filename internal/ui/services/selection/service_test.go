package selection

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
)

// recorderBus captures published events for assertions.
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

// fakeDirectory is an in-memory Directory recording its calls.
type fakeDirectory struct {
	mu       sync.Mutex
	searches []string
	results  map[string][]domain.Point
	byID     map[domain.PointID]domain.Point
	err      error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		results: make(map[string][]domain.Point),
		byID:    make(map[domain.PointID]domain.Point),
	}
}

func (f *fakeDirectory) SearchPoints(_ context.Context, _, _, queryText string, _ int) ([]domain.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, queryText)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[queryText], nil
}

func (f *fakeDirectory) FetchPointByID(_ context.Context, id domain.PointID) (*domain.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeDirectory) searchCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.searches))
	copy(out, f.searches)
	return out
}

func coords(lat, lon float64) *domain.Coordinates {
	return &domain.Coordinates{Latitude: lat, Longitude: lon}
}

func testPoints(n int) []domain.Point {
	points := make([]domain.Point, n)
	for i := range points {
		points[i] = domain.Point{
			ID:          domain.PointID(fmt.Sprintf("uuid-%d", i)),
			Code:        fmt.Sprintf("MSK%d", i),
			Name:        fmt.Sprintf("Point %d", i),
			AddressFull: fmt.Sprintf("Street %d", i),
			CityName:    "Moscow",
			Coords:      coords(55.7+float64(i)*0.01, 37.6),
		}
	}
	return points
}

func newTestService(dir *fakeDirectory, debounce time.Duration) (*Service, *recorderBus) {
	bus := &recorderBus{}
	svc := NewService(bus, dir, invoke.New(debounce),
		func() domain.ContextSnapshot {
			return domain.ContextSnapshot{CityName: "Moscow", CountryCode: "RU"}
		}, 15)
	return svc, bus
}

func TestOnInputEmptyClearsResultsButNotBinding(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, time.Millisecond)

	id := domain.PointID("uuid-1")
	svc.state.BoundPointID = &id
	svc.state.Results = testPoints(2)
	svc.state.DropdownVisible = true
	svc.state.ActiveIndex = 1

	svc.OnInput("")

	assert.Empty(t, svc.State().Results)
	assert.False(t, svc.State().DropdownVisible)
	assert.Equal(t, -1, svc.State().ActiveIndex)
	// Clearing the bound value is a separate explicit action.
	require.NotNil(t, svc.State().BoundPointID)
	assert.Equal(t, id, *svc.State().BoundPointID)
}

func TestOnInputBelowThresholdDoesNotSearch(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, time.Millisecond)

	svc.OnInput("m")
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, dir.searchCalls())
	assert.False(t, svc.State().DropdownVisible)
}

func TestBurstOfInputRunsExactlyOneSearchWithFinalQuery(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, 20*time.Millisecond)

	for _, q := range []string{"Mo", "Mos", "Mosc", "Moscow, Tver"} {
		svc.OnInput(q)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(dir.searchCalls()) == 1
	}, time.Second, 5*time.Millisecond)
	// The quiet period must not produce a second execution.
	time.Sleep(50 * time.Millisecond)
	calls := dir.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Moscow, Tver", calls[0])
}

func TestStaleSearchResponseIsDiscarded(t *testing.T) {
	dir := newFakeDirectory()
	dir.results["slow"] = testPoints(1)
	dir.results["fast"] = testPoints(3)
	svc, bus := newTestService(dir, time.Millisecond)

	// Issue a slow search, then a fast one; both complete, fast first.
	svc.dispatchSearch("slow", svc.searchSeq.Add(1))
	svc.dispatchSearch("fast", svc.searchSeq.Add(1))

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventSearchCompleted)) == 2
	}, time.Second, 5*time.Millisecond)

	var slowEv, fastEv eventbus.SearchCompletedEvent
	for _, e := range bus.ofType(eventbus.EventSearchCompleted) {
		ev := e.(eventbus.SearchCompletedEvent)
		if ev.Query == "slow" {
			slowEv = ev
		} else {
			fastEv = ev
		}
	}

	assert.True(t, svc.ApplySearchCompleted(fastEv))
	require.Len(t, svc.State().Results, 3)

	// The slow response resolved after the fast one was dispatched; it
	// must never overwrite the fresher results.
	assert.False(t, svc.ApplySearchCompleted(slowEv))
	assert.Len(t, svc.State().Results, 3)
}

func TestShrinkingQueryInvalidatesInFlightSearch(t *testing.T) {
	dir := newFakeDirectory()
	dir.results["Moscow"] = testPoints(2)
	svc, bus := newTestService(dir, time.Millisecond)

	svc.dispatchSearch("Moscow", svc.searchSeq.Add(1))
	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventSearchCompleted)) == 1
	}, time.Second, 5*time.Millisecond)

	// Query shrank below the threshold before the response was applied.
	svc.OnInput("M")

	ev := bus.ofType(eventbus.EventSearchCompleted)[0].(eventbus.SearchCompletedEvent)
	assert.False(t, svc.ApplySearchCompleted(ev))
	assert.Empty(t, svc.State().Results)
}

func TestShrinkWhileDebouncePendingDiscardsTheSearch(t *testing.T) {
	dir := newFakeDirectory()
	dir.results["Mo"] = testPoints(2)
	svc, bus := newTestService(dir, 15*time.Millisecond)

	svc.OnInput("Mo")
	// Shrinks below the threshold before the debounce fires; the pending
	// run still executes, but under its original tag.
	svc.OnInput("M")

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventSearchCompleted)) == 1
	}, time.Second, 5*time.Millisecond)

	ev := bus.ofType(eventbus.EventSearchCompleted)[0].(eventbus.SearchCompletedEvent)
	require.Equal(t, "Mo", ev.Query)
	assert.False(t, svc.ApplySearchCompleted(ev))

	st := svc.State()
	assert.Equal(t, "M", st.QueryText)
	assert.Empty(t, st.Results)
	assert.False(t, st.DropdownVisible)
	assert.Equal(t, -1, st.ActiveIndex)
}

func TestNavigateWrapsAround(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, time.Millisecond)

	svc.state.Results = testPoints(3)
	svc.state.DropdownVisible = true

	want := []int{0, 1, 2, 0, 1}
	for i, expected := range want {
		svc.Navigate(1)
		assert.Equalf(t, expected, svc.State().ActiveIndex, "after %d downs", i+1)
	}

	svc.Navigate(-1)
	svc.Navigate(-1)
	assert.Equal(t, 2, svc.State().ActiveIndex)
}

func TestNavigateIgnoredWithoutDropdown(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, time.Millisecond)

	svc.Navigate(1)
	assert.Equal(t, -1, svc.State().ActiveIndex)

	svc.state.Results = testPoints(2)
	svc.state.DropdownVisible = false
	svc.Navigate(1)
	assert.Equal(t, -1, svc.State().ActiveIndex)
}

func TestCommitActiveBindsAndEmitsPersistedSideEffect(t *testing.T) {
	dir := newFakeDirectory()
	svc, bus := newTestService(dir, time.Millisecond)

	points := testPoints(3)
	svc.state.Results = points
	svc.state.DropdownVisible = true
	svc.Navigate(1) // highlight the first point

	svc.CommitActive()

	st := svc.State()
	require.NotNil(t, st.BoundPointID)
	assert.Equal(t, points[0].ID, *st.BoundPointID)
	assert.Equal(t, "MSK0 - Point 0 (Street 0)", st.DisplaySummary)
	assert.Equal(t, st.DisplaySummary, st.QueryText)
	assert.False(t, st.DropdownVisible)
	assert.Equal(t, -1, st.ActiveIndex)

	bound := bus.ofType(eventbus.EventPointBound)
	require.Len(t, bound, 1)
	assert.True(t, bound[0].(eventbus.PointBoundEvent).Persist)
}

func TestCommitActiveWithoutHighlightIsNoop(t *testing.T) {
	dir := newFakeDirectory()
	svc, bus := newTestService(dir, time.Millisecond)

	svc.state.Results = testPoints(2)
	svc.state.DropdownVisible = true

	svc.CommitActive()

	assert.Nil(t, svc.State().BoundPointID)
	assert.Empty(t, bus.ofType(eventbus.EventPointBound))
}

func TestDismissKeepsBindingAndQuery(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, time.Millisecond)

	svc.state.Results = testPoints(2)
	svc.state.DropdownVisible = true
	svc.state.ActiveIndex = 1
	svc.state.QueryText = "mos"

	svc.Dismiss()

	assert.False(t, svc.State().DropdownVisible)
	assert.Equal(t, -1, svc.State().ActiveIndex)
	assert.Equal(t, "mos", svc.State().QueryText)
}

func TestClearThenExternalValueChangedNoneIsIdempotent(t *testing.T) {
	dir := newFakeDirectory()
	svc, bus := newTestService(dir, time.Millisecond)

	svc.state.Results = testPoints(1)
	svc.state.DropdownVisible = true
	svc.CommitPoint(svc.state.Results[0])

	svc.Clear()
	after := *svc.State()

	svc.ExternalValueChanged(nil)
	assert.Equal(t, after, *svc.State())

	// Only the explicit clear persists; the mirrored one must not.
	cleared := bus.ofType(eventbus.EventSelectionCleared)
	require.Len(t, cleared, 2)
	assert.True(t, cleared[0].(eventbus.SelectionClearedEvent).Persist)
	assert.False(t, cleared[1].(eventbus.SelectionClearedEvent).Persist)
}

func TestExternalValueChangedBindsWithoutPersisting(t *testing.T) {
	dir := newFakeDirectory()
	point := testPoints(1)[0]
	dir.byID[point.ID] = point
	svc, bus := newTestService(dir, time.Millisecond)

	id := point.ID
	svc.ExternalValueChanged(&id)

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventLookupCompleted)) == 1
	}, time.Second, 5*time.Millisecond)

	ev := bus.ofType(eventbus.EventLookupCompleted)[0].(eventbus.LookupCompletedEvent)
	svc.ApplyLookupCompleted(ev)

	st := svc.State()
	require.NotNil(t, st.BoundPointID)
	assert.Equal(t, point.ID, *st.BoundPointID)
	assert.Equal(t, point.Summary(), st.QueryText)

	bound := bus.ofType(eventbus.EventPointBound)
	require.Len(t, bound, 1)
	assert.False(t, bound[0].(eventbus.PointBoundEvent).Persist)
}

func TestExternalValueChangedUnknownIDSurfacesLookupError(t *testing.T) {
	dir := newFakeDirectory()
	svc, bus := newTestService(dir, time.Millisecond)

	id := domain.PointID("gone")
	svc.ExternalValueChanged(&id)

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventLookupCompleted)) == 1
	}, time.Second, 5*time.Millisecond)

	ev := bus.ofType(eventbus.EventLookupCompleted)[0].(eventbus.LookupCompletedEvent)
	svc.ApplyLookupCompleted(ev)

	assert.Nil(t, svc.State().BoundPointID)
	assert.Equal(t, domain.ErrLookupFailed, svc.State().Err)
}

func TestSearchFailureClearsResultsAndStaysInteractive(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = fmt.Errorf("boom")
	svc, bus := newTestService(dir, time.Millisecond)

	svc.dispatchSearch("Moscow", svc.searchSeq.Add(1))
	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventSearchFailed)) == 1
	}, time.Second, 5*time.Millisecond)

	ev := bus.ofType(eventbus.EventSearchFailed)[0].(eventbus.SearchFailedEvent)
	svc.ApplySearchFailed(ev)

	st := svc.State()
	assert.Empty(t, st.Results)
	assert.False(t, st.DropdownVisible)
	assert.Equal(t, domain.ErrSearchFailed, st.Err)
	assert.Len(t, bus.ofType(eventbus.EventError), 1)

	// The next keystroke recovers.
	svc.OnInput("Moscow")
	assert.Equal(t, domain.ErrorKind(""), svc.State().Err)
}

func TestCloseStopsPendingDebouncedSearch(t *testing.T) {
	dir := newFakeDirectory()
	svc, _ := newTestService(dir, 20*time.Millisecond)

	svc.OnInput("Moscow")
	svc.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, dir.searchCalls())
}

func TestEndToEndSearchNavigateCommit(t *testing.T) {
	dir := newFakeDirectory()
	dir.results["Moscow, Tver"] = testPoints(3)
	svc, bus := newTestService(dir, 10*time.Millisecond)

	svc.OnInput("Moscow, Tver")

	require.Eventually(t, func() bool {
		return len(bus.ofType(eventbus.EventSearchCompleted)) == 1
	}, time.Second, 5*time.Millisecond)
	require.Len(t, dir.searchCalls(), 1)

	ev := bus.ofType(eventbus.EventSearchCompleted)[0].(eventbus.SearchCompletedEvent)
	require.True(t, svc.ApplySearchCompleted(ev))

	st := svc.State()
	assert.True(t, st.DropdownVisible)
	assert.Len(t, st.Results, 3)
	assert.Equal(t, -1, st.ActiveIndex)

	svc.Navigate(1)
	svc.CommitActive()

	assert.Equal(t, "MSK0 - Point 0 (Street 0)", svc.State().QueryText)
	require.Len(t, bus.ofType(eventbus.EventPointBound), 1)
}
