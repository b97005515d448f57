package topology

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pior/docdb/doc"
)

const (
	// DefaultMaxBSONObjectSize is the server size cap assumed before the
	// first successful probe.
	DefaultMaxBSONObjectSize int32 = 16 * 1024 * 1024
	// DefaultMaxWriteBatchSize is the server op-count cap assumed before
	// the first successful probe.
	DefaultMaxWriteBatchSize int32 = 1000

	// latencyAlpha is the EMA smoothing factor over a 1000-sample window.
	latencyAlpha = 2.0 / 1001.0

	// versionProbeInterval is how long a precisely known version is
	// trusted before a buildInfo re-probe is warranted.
	versionProbeInterval = 10 * time.Minute
)

var (
	latencyUnknown = math.MaxFloat64
	lagUnknown     = math.Inf(1)
)

// ProbeResult is the parsed shape of a status-probe reply: isMaster,
// optionally replSetGetStatus, optionally buildInfo. The caller (the
// Client's status-probe loop) is responsible for issuing the probes and
// handing back this normalized view; Server only interprets it.
type ProbeResult struct {
	IsMaster  bool
	Secondary bool
	ArbiterOnly bool

	HasReplicaSetStatus bool
	MyState             int
	LagSeconds          float64 // precomputed: max(members' optime) - my optime, in seconds

	Tags *doc.Document
	Me   string
	Hosts []string
	SetName string

	VersionArray  []int32
	VersionString string
	WireVersion   int32

	MaxBSONObjectSize int32
	MaxWriteBatchSize int32
}

// Server is a cluster member's mutable state record. Identity equality
// only: two *Server pointers are equal iff they are the same record.
type Server struct {
	mu sync.RWMutex
	propertyPublisher

	canonicalAddr string
	workingAddr   string

	role Role
	tags *doc.Document
	lagSeconds float64

	version        string
	versionPrecise bool
	wireVersionFloor int32
	lastVersionProbe time.Time

	maxBSONObjectSize int32
	maxWriteBatchSize int32

	latencyEMA float64
}

// NewServer creates a Server record for addr, in RoleUnknown with
// default size caps and an unset latency/lag sentinel, exactly as a
// freshly discovered cluster member starts out.
func NewServer(addr string) *Server {
	return &Server{
		canonicalAddr:     addr,
		workingAddr:       addr,
		role:              RoleUnknown,
		lagSeconds:        lagUnknown,
		maxBSONObjectSize: DefaultMaxBSONObjectSize,
		maxWriteBatchSize: DefaultMaxWriteBatchSize,
		latencyEMA:        latencyUnknown,
	}
}

func (s *Server) CanonicalAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canonicalAddr
}

func (s *Server) WorkingAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workingAddr
}

func (s *Server) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Server) Tags() *doc.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tags
}

// LagSeconds returns the replication lag behind the primary, or +Inf if
// unknown (unavailable, or never probed).
func (s *Server) LagSeconds() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lagSeconds
}

func (s *Server) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Server) MaxBSONObjectSize() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxBSONObjectSize
}

func (s *Server) MaxWriteBatchSize() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxWriteBatchSize
}

// LatencyEMA returns the exponentially-smoothed latency in milliseconds,
// or math.MaxFloat64 ("unknown-max") before the first sample.
func (s *Server) LatencyEMA() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latencyEMA
}

// NeedsVersionProbe reports whether buildInfo should be re-issued: the
// version is unknown, or the last successful probe is older than 10
// minutes.
func (s *Server) NeedsVersionProbe(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.version == "" {
		return true
	}
	return now.Sub(s.lastVersionProbe) > versionProbeInterval
}

// Subscribe returns a channel of this server's future PropertyChange
// events. Safe to call concurrently with ApplyProbe/RecordLatency.
func (s *Server) Subscribe() <-chan PropertyChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.propertyPublisher.Subscribe()
}

func (s *Server) publish(field string, old, new any) {
	// caller already holds s.mu
	s.propertyPublisher.publish(field, old, new)
}

// RecordLatency folds one round-trip-time sample (as measured in
// nanoseconds) into the EMA. The first sample ever recorded replaces the
// "unknown-max" sentinel outright rather than blending into it; if the
// lag was also still at its sentinel, it is zeroed at the same time,
// mirroring the coupling in the probe-driven bootstrap path.
func (s *Server) RecordLatency(sampleNanos int64) {
	sampleMs := float64(sampleNanos) / 1e6

	s.mu.Lock()
	oldLatency := s.latencyEMA
	if s.latencyEMA == latencyUnknown {
		s.latencyEMA = sampleMs
		if s.lagSeconds == lagUnknown {
			s.lagSeconds = 0
		}
	} else {
		s.latencyEMA = latencyAlpha*sampleMs + (1-latencyAlpha)*s.latencyEMA
	}
	newLatency := s.latencyEMA
	s.publish("latency", oldLatency, newLatency)
	s.mu.Unlock()
}

// ApplyProbe updates role, lag, tags, canonical name, version, and size
// caps from a status-probe reply, in that order, publishing one
// PropertyChange per field that actually changed.
func (s *Server) ApplyProbe(probe ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyRole(probe)
	s.applyTags(probe)
	s.applyCanonicalName(probe)
	s.applyVersion(probe)
	s.applySizeCaps(probe)
}

func (s *Server) applyRole(probe ProbeResult) {
	oldRole, oldLag := s.role, s.lagSeconds
	var newRole Role
	var newLag float64

	switch {
	case probe.HasReplicaSetStatus:
		switch probe.MyState {
		case 1:
			newRole, newLag = RoleWritable, 0
		case 2:
			newRole, newLag = RoleReadOnly, probe.LagSeconds
		default:
			newRole, newLag = RoleUnavailable, lagUnknown
		}
	case probe.IsMaster:
		newRole, newLag = RoleWritable, 0
	case probe.Secondary:
		newRole = RoleReadOnly
		if oldLag == lagUnknown {
			newLag = 0
		} else {
			newLag = oldLag
		}
	default:
		newRole, newLag = RoleUnavailable, lagUnknown
	}

	s.role, s.lagSeconds = newRole, newLag
	if oldRole != newRole {
		s.publish("role", oldRole, newRole)
	}
	if oldLag != newLag {
		s.publish("lag", oldLag, newLag)
	}
}

func (s *Server) applyTags(probe ProbeResult) {
	old := s.tags
	if probe.Tags == nil {
		return
	}
	s.tags = probe.Tags
	if !old.Equal(probe.Tags) {
		s.publish("tags", old, probe.Tags)
	}
}

func (s *Server) applyCanonicalName(probe ProbeResult) {
	if probe.Me == "" || probe.Me == s.canonicalAddr {
		return
	}
	old := s.canonicalAddr
	s.canonicalAddr = probe.Me
	s.publish("canonicalAddr", old, probe.Me)
}

func (s *Server) applyVersion(probe ProbeResult) {
	old := s.version

	switch {
	case len(probe.VersionArray) > 0:
		s.version = versionString(probe.VersionArray)
		s.versionPrecise = true
	case probe.VersionString != "":
		s.version = probe.VersionString
		s.versionPrecise = true
	case probe.WireVersion > 0 && !s.versionPrecise && probe.WireVersion > s.wireVersionFloor:
		s.wireVersionFloor = probe.WireVersion
		s.version = fmt.Sprintf("wire-%d", probe.WireVersion)
	default:
		return
	}

	s.lastVersionProbe = time.Now()
	if old != s.version {
		s.publish("version", old, s.version)
	}
}

func (s *Server) applySizeCaps(probe ProbeResult) {
	if probe.MaxBSONObjectSize > 0 && probe.MaxBSONObjectSize != s.maxBSONObjectSize {
		old := s.maxBSONObjectSize
		s.maxBSONObjectSize = probe.MaxBSONObjectSize
		s.publish("maxBSONObjectSize", old, probe.MaxBSONObjectSize)
	}
	if probe.MaxWriteBatchSize > 0 && probe.MaxWriteBatchSize != s.maxWriteBatchSize {
		old := s.maxWriteBatchSize
		s.maxWriteBatchSize = probe.MaxWriteBatchSize
		s.publish("maxWriteBatchSize", old, probe.MaxWriteBatchSize)
	}
}

func versionString(parts []int32) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "."
		}
		s += fmt.Sprintf("%d", p)
	}
	return s
}
