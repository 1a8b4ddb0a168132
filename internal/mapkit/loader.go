// Package mapkit is the mapping SDK boundary: a process-wide lazily
// loaded SDK exposing geocoding, map instances and clickable placemarks.
// The widget core only ever touches it through the synchronizer, so a
// failed load leaves the rest of the widget fully functional.
package mapkit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Options configures the SDK load.
type Options struct {
	APIKey     string
	GeocodeURL string
}

var (
	loadGroup singleflight.Group

	loadedMu sync.RWMutex
	loaded   *SDK
)

// Load initializes the SDK once per process. Concurrent requesters await
// the same in-flight load instead of double-loading; later calls return
// the already-loaded instance regardless of their options.
func Load(ctx context.Context, opts Options) (*SDK, error) {
	loadedMu.RLock()
	sdk := loaded
	loadedMu.RUnlock()
	if sdk != nil {
		return sdk, nil
	}

	v, err, _ := loadGroup.Do("sdk", func() (interface{}, error) {
		loadedMu.RLock()
		existing := loaded
		loadedMu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		sdk, err := newSDK(ctx, opts)
		if err != nil {
			return nil, err
		}

		loadedMu.Lock()
		loaded = sdk
		loadedMu.Unlock()
		return sdk, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load map sdk: %w", err)
	}
	return v.(*SDK), nil
}

// resetForTest clears the process-wide instance between tests.
func resetForTest() {
	loadedMu.Lock()
	loaded = nil
	loadedMu.Unlock()
}
