package test

import (
	"fmt"
	"os"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/test/factory"
)

// ResetTestRoot creates a fresh test home directory with a config file and
// returns the test configuration pointing at it.
func ResetTestRoot(testName string) (*config.Config, error) {
	// create a unique, concurrency-safe test directory under os.TempDir()
	rootDir, err := os.MkdirTemp("", fmt.Sprintf("chainsync-%s_", testName))
	if err != nil {
		return nil, err
	}

	if err := config.EnsureRoot(rootDir); err != nil {
		return nil, err
	}

	cfg := config.TestConfig().SetRoot(rootDir)
	cfg.Sync.GenesisHash = factory.GenesisHashHex()
	if err := config.WriteConfigFile(rootDir, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
