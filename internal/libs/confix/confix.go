// Package confix applies changes to a chainsync TOML configuration file, to
// update configurations created with an older version of chainsync to a
// compatible format for a newer version.
package confix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/creachadair/tomledit"
	"github.com/creachadair/tomledit/parser"
	"github.com/creachadair/tomledit/transform"

	tmos "github.com/tendermint/chainsync/libs/os"
)

// The plan is the sequence of transformation steps that should be applied, in
// the given order, to convert a configuration file to be compatible with the
// current version of the config grammar.
var plan = transform.Plan{
	{
		Desc: "Rename everything from snake_case to kebab-case",
		T:    transform.SnakeToKebab(),
	},
	{
		Desc:    "Rename [blocksync] to [sync]",
		T:       transform.Rename(parser.Key{"blocksync"}, parser.Key{"sync"}),
		ErrorOK: true,
	},
	{
		Desc: `Add sync.master-election default "best"`,
		T: transform.EnsureKey(parser.Key{"sync"}, &parser.KeyValue{
			Block: parser.Comments{
				"Master election policy:",
				`  1) "best" - the peer with the highest total difficulty`,
				`  2) "weighted" - a random peer, weighted by total difficulty`,
			},
			Name:  parser.Key{"master-election"},
			Value: parser.MustValue(`"best"`),
		}),
		ErrorOK: true,
	},
	{
		Desc: "Add instrumentation.max-open-connections",
		T: transform.EnsureKey(parser.Key{"instrumentation"}, &parser.KeyValue{
			Block: parser.Comments{
				"Maximum number of simultaneous connections to the metrics server.",
				"0 means unlimited.",
			},
			Name:  parser.Key{"max-open-connections"},
			Value: parser.MustValue("3"),
		}),
		ErrorOK: true,
	},
}

// Upgrade reads the configuration file at configPath and applies any
// transformations necessary to upgrade it to the current version. The
// result is written to outputPath, which may be configPath itself.
func Upgrade(ctx context.Context, configPath, outputPath string) error {
	if configPath == "" {
		return errors.New("empty input configuration path")
	}

	doc, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := ApplyFixes(ctx, doc); err != nil {
		return fmt.Errorf("updating %q: %w", configPath, err)
	}

	var buf bytes.Buffer
	if err := tomledit.Format(&buf, doc); err != nil {
		return fmt.Errorf("formatting config: %w", err)
	}

	return tmos.WriteFileAtomic(outputPath, buf.Bytes(), 0644)
}

// ApplyFixes transforms doc and reports whether it succeeded.
func ApplyFixes(ctx context.Context, doc *tomledit.Document) error {
	return plan.Apply(ctx, doc)
}

// LoadConfig loads and parses the TOML document from path.
func LoadConfig(path string) (*tomledit.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tomledit.Parse(f)
}
