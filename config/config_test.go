package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.Sync)
	assert.NotNil(cfg.Instrumentation)
	assert.Equal(100, cfg.Sync.RotationLimit)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	assert.Equal("/foo/data", cfg.DBDir())

	cfg.DBPath = "/opt/data"
	assert.Equal("/opt/data", cfg.DBDir())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with the tick interval
	cfg.Sync.TickInterval = -10 * time.Second
	err := cfg.ValidateBasic()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "[sync]"), err.Error())
}

func TestBaseConfigValidateBasic(t *testing.T) {
	cfg := TestBaseConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with log format
	cfg.LogFormat = "invalid"
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestBaseConfig()
	cfg.DBBackend = "rocksdb"
	assert.Error(t, cfg.ValidateBasic())
}

func TestSyncConfigValidateBasic(t *testing.T) {
	fieldsToTest := map[string]func(*SyncConfig){
		"TickInterval":         func(c *SyncConfig) { c.TickInterval = 0 },
		"RequestInterval":      func(c *SyncConfig) { c.RequestInterval = -1 },
		"RequestTimeout":       func(c *SyncConfig) { c.RequestTimeout = 0 },
		"RotationLimit":        func(c *SyncConfig) { c.RotationLimit = -1 },
		"MaxHeadersPerRequest": func(c *SyncConfig) { c.MaxHeadersPerRequest = 0 },
		"MaxBodiesPerRequest":  func(c *SyncConfig) { c.MaxBodiesPerRequest = 0 },
		"HeaderQueueLimit":     func(c *SyncConfig) { c.HeaderQueueLimit = 0 },
		"BlockQueueLimit":      func(c *SyncConfig) { c.BlockQueueLimit = 1 },
		"ImportBatchSize":      func(c *SyncConfig) { c.ImportBatchSize = 0 },
		"KnownTxsCacheSize":    func(c *SyncConfig) { c.KnownTxsCacheSize = 0 },
		"MasterElection":       func(c *SyncConfig) { c.MasterElection = "oldest" },
		"GenesisHashHex":       func(c *SyncConfig) { c.GenesisHash = "zz" },
		"GenesisHashLen":       func(c *SyncConfig) { c.GenesisHash = "abcd" },
	}

	for name, tamper := range fieldsToTest {
		tamper := tamper
		t.Run(name, func(t *testing.T) {
			cfg := TestSyncConfig()
			require.NoError(t, cfg.ValidateBasic())
			tamper(cfg)
			assert.Error(t, cfg.ValidateBasic())
		})
	}
}

func TestSyncConfigGenesis(t *testing.T) {
	cfg := DefaultSyncConfig()

	h, err := cfg.Genesis()
	require.NoError(t, err)
	require.True(t, h.IsZero())

	cfg.GenesisHash = strings.Repeat("ab", 32)
	h, err = cfg.Genesis()
	require.NoError(t, err)
	require.Equal(t, byte(0xab), h[0])
	require.Equal(t, byte(0xab), h[31])
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	assert.NoError(t, cfg.ValidateBasic())

	cfg.Prometheus = true
	cfg.PrometheusListenAddr = ""
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestInstrumentationConfig()
	cfg.MaxOpenConnections = -1
	assert.Error(t, cfg.ValidateBasic())
}
