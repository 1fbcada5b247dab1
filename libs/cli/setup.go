// Package cli binds cobra commands to viper: flags, CS_ environment
// variables and the config file all feed the same configuration.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	HomeFlag     = "home"
	TraceFlag    = "trace"
	LogLevelFlag = "log-level"
)

// InitEnv makes viper read environment variables named <PREFIX>_<KEY>, where
// dashes and dots in the key are replaced by underscores. Variables written
// without the separator (CSHOME) are copied to the separated form (CS_HOME).
func InitEnv(prefix string) {
	prefix = strings.ToUpper(prefix)
	sep := prefix + "_"
	for _, kv := range os.Environ() {
		key, value, ok := cutEnv(kv)
		if !ok || !strings.HasPrefix(key, prefix) || strings.HasPrefix(key, sep) {
			continue
		}
		os.Setenv(sep+strings.TrimPrefix(key, prefix), value) //nolint:errcheck
	}

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func cutEnv(kv string) (key, value string, ok bool) {
	i := strings.IndexByte(kv, '=')
	if i < 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

// BindFlagsLoadViper binds the flags of cmd, including the persistent flags
// of its parents, and reads config.toml from the home directory or its
// config/ subdirectory. A missing config file is not an error.
func BindFlagsLoadViper(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	home := viper.GetString(HomeFlag)
	viper.Set(HomeFlag, home)
	viper.SetConfigName("config")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, "config"))

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

// PrepareBaseCmd adds the home and trace flags to cmd and makes it load its
// configuration before running.
func PrepareBaseCmd(cmd *cobra.Command, envPrefix, defaultHome string) *cobra.Command {
	cobra.OnInitialize(func() { InitEnv(envPrefix) })
	cmd.PersistentFlags().String(HomeFlag, defaultHome, "directory for config and data")
	cmd.PersistentFlags().Bool(TraceFlag, false, "print out full stack trace on errors")

	prev := cmd.PersistentPreRunE
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := BindFlagsLoadViper(c, args); err != nil {
			return err
		}
		if prev != nil {
			return prev(c, args)
		}
		return nil
	}
	return cmd
}

// Execute runs cmd and reports a failure on stderr. With --trace the error
// is printed with %+v.
func Execute(cmd *cobra.Command) int {
	return execute(cmd, os.Stderr)
}

func execute(cmd *cobra.Command, w io.Writer) int {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err != nil {
		if viper.GetBool(TraceFlag) {
			fmt.Fprintf(w, "ERROR: %+v\n", err)
		} else {
			fmt.Fprintf(w, "ERROR: %v\n", err)
		}
		return 1
	}
	return 0
}
