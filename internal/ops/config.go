package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/bridge"
	"main/internal/streams"
	"main/internal/translator"
	"main/internal/venue/btcc"

	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Venue     VenueConfig        `json:"venue"`
	Bridge    BridgeConfig       `json:"bridge"`
	Journal   JournalConfig      `json:"journal"`
	Queue     QueueConfig        `json:"queue"`
	Features  FeatureFlagsConfig `json:"features"`
	Profiling ProfilingConfig    `json:"profiling"`
}

// VenueConfig holds credentials and endpoints for the venue connection.
type VenueConfig struct {
	DevMode   bool     `json:"devMode"`
	AccessID  string   `json:"accessId"`
	SecretKey string   `json:"secretKey"`
	Source    string   `json:"source"`
	Markets   []string `json:"markets"`
	BaseURL   string   `json:"baseUrl"`
	WsURL     string   `json:"wsUrl"`
}

// BridgeConfig tunes lifecycle timeouts and intervals. Durations use
// time.ParseDuration syntax; empty fields keep the builtin defaults.
type BridgeConfig struct {
	RequestTimeout    string        `json:"requestTimeout"`
	ShutdownTimeout   string        `json:"shutdownTimeout"`
	ClientOrderPrefix string        `json:"clientOrderPrefix"`
	MetadataInterval  string        `json:"metadataInterval"`
	FillBufferTTL     string        `json:"fillBufferTtl"`
	FillSweepInterval string        `json:"fillSweepInterval"`
	Reconnect         BackoffConfig `json:"reconnect"`
	StreamBackoff     BackoffConfig `json:"streamBackoff"`
}

// BackoffConfig mirrors the exponential backoff parameters.
type BackoffConfig struct {
	Min    string  `json:"min"`
	Max    string  `json:"max"`
	Factor float64 `json:"factor"`
	Jitter float64 `json:"jitter"`
}

// JournalConfig describes the event journal database. An empty config
// disables the journal.
type JournalConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	ConnString string `json:"connString"`
}

func (c JournalConfig) isZero() bool {
	return c == JournalConfig{}
}

// QueueConfig sizes the outbound event queue.
type QueueConfig struct {
	Capacity int `json:"capacity"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableJournal  *bool `json:"enableJournal"`
	EnableBalances *bool `json:"enableBalances"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableJournal  bool
	EnableBalances bool
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
	AppName       string `json:"appName"`
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	Venue         btcc.Config
	Bridge        bridge.Config
	Translator    translator.Config
	Journal       conn.Option
	QueueCapacity int
	Features      FeatureFlags
	Profiling     ProfilingConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a file config and fills defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Venue.AccessID == "" || cfg.Venue.SecretKey == "" {
		return Loaded{}, fmt.Errorf("venue accessId and secretKey are required")
	}

	bridgeCfg, translatorCfg, err := resolveBridge(cfg.Bridge)
	if err != nil {
		return Loaded{}, err
	}

	features := resolveFeatures(cfg.Features, cfg.Journal)
	if features.EnableJournal && cfg.Journal.isZero() {
		return Loaded{}, fmt.Errorf("journal enabled but no database configured")
	}

	capacity := cfg.Queue.Capacity
	if capacity <= 0 {
		capacity = 1024
	}

	profiling := cfg.Profiling
	if profiling.Enabled && profiling.ServerAddress == "" {
		return Loaded{}, fmt.Errorf("profiling enabled but no serverAddress configured")
	}
	if profiling.AppName == "" {
		profiling.AppName = "execution-bridge"
	}

	return Loaded{
		Venue: btcc.Config{
			DevMode:   cfg.Venue.DevMode,
			AccessID:  cfg.Venue.AccessID,
			SecretKey: cfg.Venue.SecretKey,
			Source:    cfg.Venue.Source,
			Markets:   cfg.Venue.Markets,
			BaseURL:   cfg.Venue.BaseURL,
			WsURL:     cfg.Venue.WsURL,
		},
		Bridge:     bridgeCfg,
		Translator: translatorCfg,
		Journal: conn.Option{
			Host:       cfg.Journal.Host,
			Port:       cfg.Journal.Port,
			User:       cfg.Journal.User,
			Password:   cfg.Journal.Password,
			Database:   cfg.Journal.Database,
			SSLMode:    cfg.Journal.SSLMode,
			ConnString: cfg.Journal.ConnString,
		},
		QueueCapacity: capacity,
		Features:      features,
		Profiling:     profiling,
	}, nil
}

func resolveBridge(cfg BridgeConfig) (bridge.Config, translator.Config, error) {
	var out bridge.Config
	var tr translator.Config
	var err error

	if out.RequestTimeout, err = parseDuration(cfg.RequestTimeout, "requestTimeout"); err != nil {
		return out, tr, err
	}
	if out.ShutdownTimeout, err = parseDuration(cfg.ShutdownTimeout, "shutdownTimeout"); err != nil {
		return out, tr, err
	}
	if out.MetadataInterval, err = parseDuration(cfg.MetadataInterval, "metadataInterval"); err != nil {
		return out, tr, err
	}
	if out.FillSweepInterval, err = parseDuration(cfg.FillSweepInterval, "fillSweepInterval"); err != nil {
		return out, tr, err
	}
	if tr.FillBufferTTL, err = parseDuration(cfg.FillBufferTTL, "fillBufferTtl"); err != nil {
		return out, tr, err
	}
	if out.Reconnect, err = resolveBackoff(cfg.Reconnect, "reconnect"); err != nil {
		return out, tr, err
	}
	if out.Streams.Backoff, err = resolveBackoff(cfg.StreamBackoff, "streamBackoff"); err != nil {
		return out, tr, err
	}
	out.ClientOrderPrefix = cfg.ClientOrderPrefix
	return out, tr, nil
}

func resolveBackoff(cfg BackoffConfig, name string) (streams.Backoff, error) {
	var out streams.Backoff
	var err error
	if out.Min, err = parseDuration(cfg.Min, name+".min"); err != nil {
		return out, err
	}
	if out.Max, err = parseDuration(cfg.Max, name+".max"); err != nil {
		return out, err
	}
	out.Factor = cfg.Factor
	out.Jitter = cfg.Jitter
	return out, nil
}

func parseDuration(s, name string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return d, nil
}

func resolveFeatures(cfg FeatureFlagsConfig, journal JournalConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableJournal:  !journal.isZero(),
		EnableBalances: true,
	}
	if cfg.EnableJournal != nil {
		flags.EnableJournal = *cfg.EnableJournal
	}
	if cfg.EnableBalances != nil {
		flags.EnableBalances = *cfg.EnableBalances
	}
	return flags
}
