// Package topology tracks the set of servers in a cluster and the
// mutable per-server state (role, replication lag, tags, version, size
// caps, latency) derived from periodic status probes.
package topology
