// Package config provides configuration types and loading for agenttrail.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Record, Feed, Log.
type Config struct {
	Paths  PathsConfig  `json:"paths"`
	Record RecordConfig `json:"record"`
	Feed   FeedConfig   `json:"feed"`
	Log    LogConfig    `json:"log"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// ---------------------------------------------------------------------------
// Record – ingest behaviour
// ---------------------------------------------------------------------------

// RecordConfig groups recording settings.
type RecordConfig struct {
	// DefaultBackend is used when a task is created without an explicit
	// backend name.
	DefaultBackend string `json:"defaultBackend" envconfig:"DEFAULT_BACKEND"`
	// KeepRaw controls whether raw backend events are persisted alongside
	// normalized rows. Disabling it forfeits reprocessing.
	KeepRaw bool `json:"keepRaw" envconfig:"KEEP_RAW"`
}

// ---------------------------------------------------------------------------
// Feed – live event publishing via Kafka
// ---------------------------------------------------------------------------

// FeedConfig contains settings for the optional Kafka event feed.
type FeedConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
	// ClientID identifies this recorder in broker logs.
	ClientID string `json:"clientId" envconfig:"KAFKA_CLIENT_ID"`
}

// ---------------------------------------------------------------------------
// Log – structured logging
// ---------------------------------------------------------------------------

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `json:"level" envconfig:"LEVEL"`   // "debug", "info", "warn", "error"
	Format string `json:"format" envconfig:"FORMAT"` // "text" or "json"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.agenttrail",
			DBPath:  "", // derived from DataDir when empty
		},
		Record: RecordConfig{
			DefaultBackend: "claude",
			KeepRaw:        true,
		},
		Feed: FeedConfig{
			Enabled:  false,
			Topic:    "agenttrail.events",
			ClientID: "agenttrail",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
