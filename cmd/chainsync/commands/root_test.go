package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/test"
	"github.com/tendermint/chainsync/internal/test/factory"
	"github.com/tendermint/chainsync/libs/log"
)

func newTestLogger(t *testing.T) log.Logger {
	t.Helper()
	logger, err := log.NewLogger(io.Discard, log.LogFormatPlain, log.LogLevelInfo)
	require.NoError(t, err)
	return logger
}

// runCommand executes root with args and returns its output.
func runCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	viper.Reset()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandLoadsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CS_LOG_LEVEL", "debug")

	conf := config.DefaultConfig()
	root := RootCommand(conf, newTestLogger(t))
	var seen config.Config
	root.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			seen = *conf
			return nil
		},
	})

	_, err := runCommand(t, root, "probe", "--home", home)
	require.NoError(t, err)
	assert.Equal(t, home, seen.RootDir)
	assert.Equal(t, "debug", seen.LogLevel)
	assert.FileExists(t, filepath.Join(home, "config", "config.toml"))
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(`log-format = "xml"`), 0600))

	root := RootCommand(config.DefaultConfig(), newTestLogger(t))
	root.AddCommand(&cobra.Command{Use: "probe", RunE: func(*cobra.Command, []string) error { return nil }})

	_, err := runCommand(t, root, "probe", "--home", home)
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	home := t.TempDir()
	genesis := factory.GenesisHashHex()

	conf := config.DefaultConfig()
	root := RootCommand(conf, newTestLogger(t))
	root.AddCommand(MakeInitCommand(conf, newTestLogger(t)))

	_, err := runCommand(t, root, "init", "--home", home, "--sync.genesis-hash", genesis, "--sync.network-id", "5")
	require.NoError(t, err)

	bz, err := os.ReadFile(filepath.Join(home, "config", "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(bz), `genesis-hash = "`+genesis+`"`)
	assert.Contains(t, string(bz), "network-id = 5")

	// an existing file keeps its settings
	_, err = runCommand(t, root, "init", "--home", home, "--sync.network-id", "7")
	require.NoError(t, err)
	bz, err = os.ReadFile(filepath.Join(home, "config", "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(bz), "network-id = 5")
}

func TestInitCommandUpgradesConfig(t *testing.T) {
	home := t.TempDir()
	configFile := filepath.Join(home, "config", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(configFile), 0700))
	require.NoError(t, os.WriteFile(configFile, []byte(`moniker = "old"
db_backend = "memdb"

[sync]
network_id = 3
rotation_limit = 9

[instrumentation]
prometheus = false
`), 0600))

	conf := config.DefaultConfig()
	root := RootCommand(conf, newTestLogger(t))
	root.AddCommand(MakeInitCommand(conf, newTestLogger(t)))

	_, err := runCommand(t, root, "init", "--home", home)
	require.NoError(t, err)

	bz, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Contains(t, string(bz), "network-id = 3")
	assert.Contains(t, string(bz), "rotation-limit = 9")
	assert.Contains(t, string(bz), `master-election = "best"`)
	assert.Contains(t, string(bz), "max-open-connections = 3")
	assert.NotContains(t, string(bz), "network_id")
}

func TestVersionCommand(t *testing.T) {
	root := RootCommand(config.DefaultConfig(), newTestLogger(t))
	root.AddCommand(VersionCmd)

	out, err := runCommand(t, root, "version", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, `"protocols": "eth/63,eth/62"`)
}

func TestSimulateCommand(t *testing.T) {
	cfg, err := test.ResetTestRoot(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(cfg.RootDir) })

	conf := config.DefaultConfig()
	root := RootCommand(conf, newTestLogger(t))
	root.AddCommand(MakeSimulateCommand(conf, newTestLogger(t)))

	out, err := runCommand(t, root, "simulate",
		"--home", cfg.RootDir,
		"--peers", "3",
		"--corrupt", "1",
		"--blocks", "60",
		"--timeout", "30s",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "synced to height 60")
}

func TestSimulationValidate(t *testing.T) {
	testCases := []struct {
		sim     simulation
		wantErr bool
	}{
		{simulation{peers: 2, blocks: 10}, false},
		{simulation{peers: 0, blocks: 10}, true},
		{simulation{peers: 2, blocks: 0}, true},
		{simulation{peers: 2, blocks: 10, stalling: 1, corrupt: 1}, true},
		{simulation{peers: 3, blocks: 10, stalling: -1}, true},
	}
	for _, tc := range testCases {
		err := tc.sim.validate()
		if tc.wantErr {
			assert.Error(t, err, "%+v", tc.sim)
		} else {
			assert.NoError(t, err, "%+v", tc.sim)
		}
	}
}
