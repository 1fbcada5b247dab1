package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tendermint/chainsync/types"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel defines a default log level as INFO.
	DefaultLogLevel = "info"

	// MasterElectionBest elects the peer with the highest total difficulty.
	MasterElectionBest = "best"
	// MasterElectionWeighted elects a random peer, weighted by total
	// difficulty.
	MasterElectionWeighted = "weighted"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultChainsyncDir = ".chainsync"
	defaultConfigDir    = "config"
	defaultDataDir      = "data"

	defaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for a chainsync node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Sync            *SyncConfig            `mapstructure:"sync"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a chainsync node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Sync:            DefaultSyncConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Sync:            TestSyncConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Sync.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [sync] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a chainsync node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Database backend: goleveldb | memdb
	DBBackend string `mapstructure:"db-backend"`

	// Database directory
	DBPath string `mapstructure:"db-dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`
}

// DefaultBaseConfig returns a default base configuration for a chainsync node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   defaultMoniker,
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing a chainsync node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log format (must be 'plain' or 'json')")
	}
	switch cfg.DBBackend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unsupported db backend %q (must be 'goleveldb' or 'memdb')", cfg.DBBackend)
	}
	return nil
}

//-----------------------------------------------------------------------------
// SyncConfig

// SyncConfig defines the configuration for the long sync strategy, the peer
// protocol handlers and the sync queue.
type SyncConfig struct {
	// Network ID advertised in, and required from, status messages.
	NetworkID uint64 `mapstructure:"network-id"`

	// Hex encoded genesis hash advertised in, and required from, status
	// messages.
	GenesisHash string `mapstructure:"genesis-hash"`

	// How often the sync strategy control loop runs.
	TickInterval time.Duration `mapstructure:"tick-interval"`

	// Number of header bunches a master may retrieve before the strategy
	// stops waiting on it and moves on to block retrieval.
	RotationLimit int `mapstructure:"rotation-limit"`

	// Master election policy: best | weighted
	MasterElection string `mapstructure:"master-election"`

	// How often peer handlers check whether a new request must be issued.
	RequestInterval time.Duration `mapstructure:"request-interval"`

	// Time after which an unanswered request is dropped.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// Maximum number of headers asked for in a single request.
	MaxHeadersPerRequest int `mapstructure:"max-headers-per-request"`

	// Maximum number of block bodies asked for in a single request.
	MaxBodiesPerRequest int `mapstructure:"max-bodies-per-request"`

	// Number of headers the queue holds before header retrieval is paused.
	HeaderQueueLimit int `mapstructure:"header-queue-limit"`

	// Number of blocks the queue holds before header retrieval is paused.
	BlockQueueLimit int `mapstructure:"block-queue-limit"`

	// Number of blocks handed to the importer at once.
	ImportBatchSize int `mapstructure:"import-batch-size"`

	// Sizes of the per-peer caches of known transactions and blocks.
	KnownTxsCacheSize    int `mapstructure:"known-txs-cache-size"`
	KnownBlocksCacheSize int `mapstructure:"known-blocks-cache-size"`
}

// DefaultSyncConfig returns a default configuration for the sync layer.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		NetworkID:            1,
		GenesisHash:          "",
		TickInterval:         100 * time.Millisecond,
		RotationLimit:        100,
		MasterElection:       MasterElectionBest,
		RequestInterval:      50 * time.Millisecond,
		RequestTimeout:       10 * time.Second,
		MaxHeadersPerRequest: 192,
		MaxBodiesPerRequest:  128,
		HeaderQueueLimit:     20000,
		BlockQueueLimit:      10000,
		ImportBatchSize:      64,
		KnownTxsCacheSize:    32768,
		KnownBlocksCacheSize: 1024,
	}
}

// TestSyncConfig returns a configuration for the sync layer with short
// intervals and small limits.
func TestSyncConfig() *SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.RotationLimit = 5
	cfg.RequestInterval = 5 * time.Millisecond
	cfg.RequestTimeout = 500 * time.Millisecond
	cfg.MaxHeadersPerRequest = 16
	cfg.MaxBodiesPerRequest = 8
	cfg.HeaderQueueLimit = 128
	cfg.BlockQueueLimit = 64
	cfg.ImportBatchSize = 8
	cfg.KnownTxsCacheSize = 128
	cfg.KnownBlocksCacheSize = 32
	return cfg
}

// Genesis decodes GenesisHash. An empty value yields the zero hash.
func (cfg *SyncConfig) Genesis() (types.Hash, error) {
	if cfg.GenesisHash == "" {
		return types.Hash{}, nil
	}
	bz, err := hex.DecodeString(cfg.GenesisHash)
	if err != nil {
		return types.Hash{}, fmt.Errorf("genesis-hash: %w", err)
	}
	if len(bz) != types.HashSize {
		return types.Hash{}, fmt.Errorf("genesis-hash: expected %d bytes, got %d", types.HashSize, len(bz))
	}
	return types.BytesToHash(bz), nil
}

// ValidateBasic performs basic validation.
func (cfg *SyncConfig) ValidateBasic() error {
	if _, err := cfg.Genesis(); err != nil {
		return err
	}
	switch cfg.MasterElection {
	case MasterElectionBest, MasterElectionWeighted:
	default:
		return fmt.Errorf("unknown master-election policy %q", cfg.MasterElection)
	}
	if cfg.TickInterval <= 0 {
		return errors.New("tick-interval must be positive")
	}
	if cfg.RequestInterval <= 0 {
		return errors.New("request-interval must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request-timeout must be positive")
	}
	if cfg.RotationLimit < 0 {
		return errors.New("rotation-limit can't be negative")
	}
	if cfg.MaxHeadersPerRequest <= 0 {
		return errors.New("max-headers-per-request must be positive")
	}
	if cfg.MaxBodiesPerRequest <= 0 {
		return errors.New("max-bodies-per-request must be positive")
	}
	if cfg.HeaderQueueLimit <= 0 {
		return errors.New("header-queue-limit must be positive")
	}
	if cfg.BlockQueueLimit <= 1 {
		return errors.New("block-queue-limit must be greater than 1")
	}
	if cfg.ImportBatchSize <= 0 {
		return errors.New("import-batch-size must be positive")
	}
	if cfg.KnownTxsCacheSize <= 0 || cfg.KnownBlocksCacheSize <= 0 {
		return errors.New("known caches must have a positive size")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Maximum number of simultaneous connections to the metrics server.
	// 0 means unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "chainsync",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus-listen-addr is required when prometheus is enabled")
	}
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

//-----------------------------------------------------------------------------
// Moniker

var defaultMoniker = getDefaultMoniker()

// getDefaultMoniker returns a default moniker, which is the host name. If runtime
// fails to get the host name, "anonymous" will be returned.
func getDefaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}
