package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	tmos "github.com/tendermint/chainsync/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes the default config file if none is present.
func EnsureRoot(rootDir string) error {
	if err := tmos.EnsureDir(rootDir, defaultDirPerm); err != nil {
		return err
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		return err
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm); err != nil {
		return err
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if !tmos.FileExists(configFilePath) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath. This function is called by cmd/chainsync/commands/init.go
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return fmt.Errorf("rendering config template: %w", err)
	}

	return tmos.WriteFileAtomic(path, buffer.Bytes(), 0644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.chainsync" by default, but could be changed via $CSHOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Database backend: goleveldb | memdb
db-backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db-dir = "{{ .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 Advanced Configuration Options                  ###
#######################################################################

#######################################################
###         Sync Configuration Options              ###
#######################################################
[sync]

# Network ID advertised in, and required from, status messages.
network-id = {{ .Sync.NetworkID }}

# Hex encoded genesis hash advertised in, and required from, status messages.
genesis-hash = "{{ .Sync.GenesisHash }}"

# How often the sync strategy control loop runs.
tick-interval = "{{ .Sync.TickInterval }}"

# Number of header bunches a master peer may retrieve before the strategy
# stops waiting on it and switches to block retrieval.
rotation-limit = {{ .Sync.RotationLimit }}

# Master election policy:
#   1) "best" - the peer with the highest total difficulty
#   2) "weighted" - a random peer, weighted by total difficulty
master-election = "{{ .Sync.MasterElection }}"

# How often peer handlers check whether a new request must be issued.
request-interval = "{{ .Sync.RequestInterval }}"

# Time after which an unanswered request is dropped.
request-timeout = "{{ .Sync.RequestTimeout }}"

# Maximum number of headers and block bodies asked for in a single request.
max-headers-per-request = {{ .Sync.MaxHeadersPerRequest }}
max-bodies-per-request = {{ .Sync.MaxBodiesPerRequest }}

# Queue limits. Header retrieval is paused once either limit is reached.
header-queue-limit = {{ .Sync.HeaderQueueLimit }}
block-queue-limit = {{ .Sync.BlockQueueLimit }}

# Number of blocks handed to the importer at once.
import-batch-size = {{ .Sync.ImportBatchSize }}

# Sizes of the per-peer caches of known transactions and blocks.
known-txs-cache-size = {{ .Sync.KnownTxsCacheSize }}
known-blocks-cache-size = {{ .Sync.KnownBlocksCacheSize }}

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections to the metrics server.
# 0 means unlimited.
max-open-connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
