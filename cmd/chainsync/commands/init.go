package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/libs/confix"
	"github.com/tendermint/chainsync/libs/log"
	tmos "github.com/tendermint/chainsync/libs/os"
)

const initCommandName = "init"

// MakeInitCommand returns the command writing config/config.toml under the
// home directory. Flags and CS_ environment variables end up in the file.
// An existing file is upgraded in place.
func MakeInitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   initCommandName,
		Short: "Initializes a chainsync home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initFiles(cmd.Context(), conf, logger)
		},
	}

	cmd.Flags().Uint64("sync.network-id", conf.Sync.NetworkID, "network ID advertised in status messages")
	cmd.Flags().String("sync.genesis-hash", conf.Sync.GenesisHash, "hex encoded genesis hash")
	cmd.Flags().String("sync.master-election", conf.Sync.MasterElection, "master election policy (best | weighted)")
	cmd.Flags().String("db-backend", conf.DBBackend, "database backend (goleveldb | memdb)")
	return cmd
}

func initFiles(ctx context.Context, conf *config.Config, logger log.Logger) error {
	configFile := filepath.Join(conf.RootDir, "config", "config.toml")
	if tmos.FileExists(configFile) {
		logger.Info("Found config file", "path", configFile)
		// existing settings are kept, keys added since the file was
		// written get their defaults
		if err := confix.Upgrade(ctx, configFile, configFile); err != nil {
			return fmt.Errorf("upgrading config file: %w", err)
		}
		return nil
	}

	if err := config.EnsureRoot(conf.RootDir); err != nil {
		return err
	}
	if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
		return err
	}
	logger.Info("Generated config file", "path", configFile)
	return nil
}
