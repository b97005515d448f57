// Package doc implements the binary document format: a length-prefixed
// tree of named, typed elements. It encodes and decodes documents and
// computes their encoded size without materializing bytes, which the
// message envelope and the batched-write planner both depend on.
package doc
