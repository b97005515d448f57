// Package planner packs insert/update/delete operations into server
// command documents under per-command byte and operation-count limits,
// using one of three ordering policies.
package planner
