package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pickpoint/internal/eventbus"
)

// Config represents the application configuration
type Config struct {
	Version    int               `toml:"version"`
	RecordPath string            `toml:"record_path"` // order record the widget binds to
	Directory  DirectorySettings `toml:"directory"`
	Map        MapSettings       `toml:"map"`
	UISettings UISettings        `toml:"ui"`
}

// DirectorySettings configures the pickup-point directory client.
type DirectorySettings struct {
	BaseURL      string `toml:"base_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	SearchLimit  int    `toml:"search_limit"`  // suggestion dropdown
	AmbientLimit int    `toml:"ambient_limit"` // city-wide map listing
}

// MapSettings configures the mapping SDK.
type MapSettings struct {
	APIKey           string  `toml:"api_key"`
	GeocodeURL       string  `toml:"geocode_url"`
	DefaultLatitude  float64 `toml:"default_latitude"`
	DefaultLongitude float64 `toml:"default_longitude"`
	DefaultZoom      int     `toml:"default_zoom"`
}

// UISettings represents UI-related configuration
type UISettings struct {
	DebounceMs int    `toml:"debounce_ms"`
	LogPath    string `toml:"log_path"`
}

// DebounceInterval returns the configured debounce delay.
func (u UISettings) DebounceInterval() time.Duration {
	return time.Duration(u.DebounceMs) * time.Millisecond
}

// ConfigService handles configuration management
type ConfigService interface {
	Load() (*Config, error)
	Save(config *Config) error
	LoadFromPath(path string) (*Config, error)
	SaveToPath(config *Config, path string) error
}

// configService is the concrete implementation
type configService struct {
	bus      eventbus.EventBus
	filePath string
}

// NewConfigService creates a new config service
func NewConfigService() ConfigService {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			configDir = "."
		}
		configDir = filepath.Join(configDir, ".config")
	}

	pickpointDir := filepath.Join(configDir, "pickpoint")
	os.MkdirAll(pickpointDir, 0755)

	return &configService{
		filePath: filepath.Join(pickpointDir, "config.toml"),
	}
}

// NewConfigServiceWithBus creates a config service with event bus support
func NewConfigServiceWithBus(bus eventbus.EventBus) ConfigService {
	cs := NewConfigService().(*configService)
	cs.bus = bus
	return cs
}

// Load loads the configuration from file
func (cs *configService) Load() (*Config, error) {
	if _, err := os.Stat(cs.filePath); os.IsNotExist(err) {
		// Return default config if file doesn't exist
		cfg := DefaultConfig()
		cs.notifyLoaded(cs.filePath)
		return cfg, nil
	}
	cfg, err := cs.LoadFromPath(cs.filePath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to file
func (cs *configService) Save(config *Config) error {
	return cs.SaveToPath(config, cs.filePath)
}

// LoadFromPath loads configuration from a specific path
func (cs *configService) LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)

	cs.notifyLoaded(path)
	return &cfg, nil
}

// SaveToPath saves configuration to a specific path
func (cs *configService) SaveToPath(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if cs.bus != nil {
		cs.bus.Publish(eventbus.ConfigSavedEvent{})
	}
	return nil
}

func (cs *configService) notifyLoaded(path string) {
	if cs.bus != nil {
		cs.bus.Publish(eventbus.ConfigLoadedEvent{Path: path})
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{Version: 1, RecordPath: "order.toml"}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values with usable defaults so a sparse config
// file still produces a working widget.
func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Directory.BaseURL == "" {
		cfg.Directory.BaseURL = "https://api.edu.cdek.ru/v2"
	}
	if cfg.Directory.SearchLimit <= 0 {
		cfg.Directory.SearchLimit = 15
	}
	if cfg.Directory.AmbientLimit <= 0 {
		cfg.Directory.AmbientLimit = 200
	}
	if cfg.Map.GeocodeURL == "" {
		cfg.Map.GeocodeURL = "https://nominatim.openstreetmap.org/search"
	}
	if cfg.Map.DefaultLatitude == 0 && cfg.Map.DefaultLongitude == 0 {
		// Moscow
		cfg.Map.DefaultLatitude = 55.7558
		cfg.Map.DefaultLongitude = 37.6173
	}
	if cfg.Map.DefaultZoom <= 0 {
		cfg.Map.DefaultZoom = 10
	}
	if cfg.UISettings.DebounceMs <= 0 {
		cfg.UISettings.DebounceMs = 300
	}
	if cfg.RecordPath == "" {
		cfg.RecordPath = "order.toml"
	}
}
