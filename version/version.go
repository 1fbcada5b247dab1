package version

import (
	"fmt"
	"strings"

	"github.com/tendermint/chainsync/internal/eth"
)

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = CSCoreSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// CSCoreSemVer is the current version of chainsync.
	// It's the Semantic Version of the software.
	CSCoreSemVer = "0.1.0"
)

// Protocols returns the eth sub-protocol versions spoken by this build,
// newest first, e.g. "eth/63,eth/62".
func Protocols() string {
	names := make([]string, len(eth.SupportedVersions))
	for i, v := range eth.SupportedVersions {
		names[i] = v.String()
	}
	return strings.Join(names, ",")
}

// Info is printed by the version command.
type Info struct {
	Chainsync string `json:"chainsync"`
	Protocols string `json:"protocols"`
}

// Current returns the version info of this build.
func Current() Info {
	return Info{Chainsync: Version, Protocols: Protocols()}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Chainsync, i.Protocols)
}
