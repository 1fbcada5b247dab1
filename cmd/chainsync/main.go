package main

import (
	"os"

	"github.com/tendermint/chainsync/cmd/chainsync/commands"
	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/libs/cli"
	"github.com/tendermint/chainsync/libs/log"
)

func main() {
	conf := config.DefaultConfig()

	logger, err := log.NewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo)
	if err != nil {
		panic(err)
	}

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf, logger),
		commands.MakeSimulateCommand(conf, logger),
		commands.VersionCmd,
	)

	os.Exit(cli.Execute(rcmd))
}
