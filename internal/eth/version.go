package eth

import "fmt"

// Version is the negotiated eth sub-protocol version, fixed at handshake.
type Version uint32

const (
	V62 Version = 62
	V63 Version = 63
)

// SupportedVersions lists the versions this node speaks, newest first.
var SupportedVersions = []Version{V63, V62}

// IsSupported reports whether v is one of SupportedVersions.
func (v Version) IsSupported() bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

func (v Version) String() string { return fmt.Sprintf("eth/%d", uint32(v)) }
