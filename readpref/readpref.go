// Package readpref implements the read-preference predicates that the
// connection pool uses to decide which server role (and, optionally,
// tags) a connection must expose to be eligible for a given message.
package readpref

import "github.com/pior/docdb/topology"

// Mode is the read-preference mode a caller attaches to a message.
type Mode int

const (
	Primary Mode = iota
	PrimaryPreferred
	Secondary
	SecondaryPreferred
	Nearest
)

func (m Mode) String() string {
	switch m {
	case Primary:
		return "primary"
	case PrimaryPreferred:
		return "primaryPreferred"
	case Secondary:
		return "secondary"
	case SecondaryPreferred:
		return "secondaryPreferred"
	case Nearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// TagMatcher reports whether a server's tags satisfy a caller's tag set.
// A nil TagMatcher matches every server.
type TagMatcher func(tags *topology.Server) bool

// ReadPreference is a mode plus an optional tag constraint.
type ReadPreference struct {
	Mode  Mode
	Match TagMatcher
}

func PrimaryPref() ReadPreference { return ReadPreference{Mode: Primary} }
func NearestPref() ReadPreference { return ReadPreference{Mode: Nearest} }

// MatchesTags reports whether s satisfies rp's tag constraint.
func (rp ReadPreference) MatchesTags(s *topology.Server) bool {
	if rp.Match == nil {
		return true
	}
	return rp.Match(s)
}

// MatchesRole reports whether s's current role is eligible under rp's
// mode, independent of tags. primary/primaryPreferred accept a writable
// server outright; secondary*/nearest accept a read-only server;
// *Preferred modes additionally fall back to whatever is available.
func (rp ReadPreference) MatchesRole(s *topology.Server) bool {
	role := s.Role()
	switch rp.Mode {
	case Primary:
		return role == topology.RoleWritable
	case PrimaryPreferred:
		return role == topology.RoleWritable || role == topology.RoleReadOnly
	case Secondary:
		return role == topology.RoleReadOnly
	case SecondaryPreferred:
		return role == topology.RoleReadOnly || role == topology.RoleWritable
	case Nearest:
		return role == topology.RoleWritable || role == topology.RoleReadOnly
	default:
		return false
	}
}

// Eligible reports whether s is eligible for a message under rp: its
// role must satisfy the mode and its tags (if any) must match.
func (rp ReadPreference) Eligible(s *topology.Server) bool {
	return rp.MatchesRole(s) && rp.MatchesTags(s)
}

// PickNearest picks, among eligible servers, the one with the lowest latency
// EMA. Returns nil if candidates is empty.
func PickNearest(candidates []*topology.Server) *topology.Server {
	var best *topology.Server
	bestLatency := -1.0
	for _, s := range candidates {
		lat := s.LatencyEMA()
		if best == nil || lat < bestLatency {
			best, bestLatency = s, lat
		}
	}
	return best
}
