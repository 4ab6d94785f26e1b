package sfs

import (
	"github.com/pior/sfs/internal"
	"github.com/zeebo/xxh3"
)

// ServerSelector picks which socket server to use for a zone.
// It receives the zone name and the number of configured servers and returns
// an index in [0, serverCount).
type ServerSelector func(zone string, serverCount int) int

// DefaultServerSelector uses Jump Hash over the zone name, so every client of
// a zone lands on the same server and few zones move when servers are added.
func DefaultServerSelector(zone string, serverCount int) int {
	return internal.JumpHash(xxh3.HashString(zone), serverCount)
}

// staticSelector is used in tests to always select a specific server.
func staticSelector(index int) ServerSelector {
	return func(zone string, serverCount int) int {
		return index % serverCount
	}
}
