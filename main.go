package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pickpoint/internal/config"
	"pickpoint/internal/directory"
	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/invoke"
	"pickpoint/internal/logging"
	"pickpoint/internal/mapkit"
	"pickpoint/internal/record"
	"pickpoint/internal/ui"
	"pickpoint/internal/ui/services/contextwatch"
	"pickpoint/internal/ui/services/mapsync"
	"pickpoint/internal/ui/services/selection"
)

// forwardedEvents is every event type the UI update loop consumes.
var forwardedEvents = []eventbus.EventType{
	eventbus.EventSearchCompleted,
	eventbus.EventSearchFailed,
	eventbus.EventLookupCompleted,
	eventbus.EventLookupFailed,
	eventbus.EventPointBound,
	eventbus.EventSelectionCleared,
	eventbus.EventContextChanged,
	eventbus.EventAmbientUpdated,
	eventbus.EventGeocodeResolved,
	eventbus.EventGeocodeFailed,
	eventbus.EventRecordChanged,
	eventbus.EventMapReady,
	eventbus.EventMapLoadFailed,
	eventbus.EventMarkerPicked,
	eventbus.EventError,
}

func main() {
	var configPath string
	var recordPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&recordPath, "record", "", "Path to the order record to bind (overrides config)")
	flag.Parse()

	// Load configuration
	bus := eventbus.New()
	configSvc := config.NewConfigServiceWithBus(bus)
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = configSvc.LoadFromPath(configPath)
	} else {
		cfg, err = configSvc.Load()
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if recordPath != "" {
		cfg.RecordPath = recordPath
	}

	// Set up logging (silent unless PICKPOINT_LOG_LEVEL is set)
	if err := logging.InitializeFromEnv(cfg.UISettings.LogPath); err != nil {
		fmt.Printf("Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	// Open the order record and start watching it for external edits
	store, err := record.Open(cfg.RecordPath, bus)
	if err != nil {
		fmt.Printf("Error opening order record %s: %v\n", cfg.RecordPath, err)
		os.Exit(1)
	}

	// Directory client and services
	dir := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.ClientID, cfg.Directory.ClientSecret)

	mapSvc := mapsync.NewService(bus, dir,
		mapkit.Options{APIKey: cfg.Map.APIKey, GeocodeURL: cfg.Map.GeocodeURL},
		domain.Coordinates{Latitude: cfg.Map.DefaultLatitude, Longitude: cfg.Map.DefaultLongitude},
		cfg.Map.DefaultZoom,
		cfg.Directory.AmbientLimit,
	)
	watcher := contextwatch.NewService(bus, mapSvc, invoke.New(cfg.UISettings.DebounceInterval()))
	selSvc := selection.NewService(bus, dir, invoke.New(cfg.UISettings.DebounceInterval()),
		watcher.Current, cfg.Directory.SearchLimit)

	// Create UI model and Bubble Tea program
	uiModel := ui.NewModel(bus, cfg, selSvc, mapSvc, watcher, store)
	p := tea.NewProgram(uiModel, tea.WithAltScreen(), tea.WithMouseCellMotion())
	uiModel.SetProgram(p)

	// Forward domain events into the update loop; all state mutation
	// happens there.
	unsubs := make([]func(), 0, len(forwardedEvents))
	for _, et := range forwardedEvents {
		unsubs = append(unsubs, bus.Subscribe(et, func(e eventbus.DomainEvent) {
			p.Send(ui.EventMsg{Event: e})
		}))
	}

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		p.Quit()
	}()

	// Run the UI
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}

	// Cleanup
	for _, unsub := range unsubs {
		unsub()
	}
	bus.Close()
	logging.GetLogger().Info("exited", zap.String("record", cfg.RecordPath))
}
