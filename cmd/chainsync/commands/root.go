package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/libs/cli"
	"github.com/tendermint/chainsync/libs/log"
)

// ParseConfig retrieves the default environment configuration, sets up the
// chainsync root and validates the result.
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCommand constructs the root command-line entry point for chainsync.
func RootCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chainsync",
		Short: "Block and header synchronization driven by a long sync strategy",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == VersionCmd.Name() {
				return nil
			}

			if err := cli.BindFlagsLoadViper(cmd, args); err != nil {
				return err
			}

			pconf, err := ParseConfig(conf)
			if err != nil {
				return err
			}
			*conf = *pconf

			if cmd.Name() != initCommandName {
				if err := config.EnsureRoot(conf.RootDir); err != nil {
					return err
				}
			}
			return log.OverrideWithNewLogger(logger, conf.LogFormat, conf.LogLevel)
		},
	}
	cmd.PersistentFlags().String(cli.HomeFlag, os.ExpandEnv(filepath.Join("$HOME", config.DefaultChainsyncDir)), "directory for config and data")
	cmd.PersistentFlags().Bool(cli.TraceFlag, false, "print out full stack trace on errors")
	cmd.PersistentFlags().String(cli.LogLevelFlag, conf.LogLevel, "log level")
	cobra.OnInitialize(func() { cli.InitEnv("CS") })
	return cmd
}
