// Package docdb implements an asynchronous client for a document
// database that speaks the legacy MongoDB wire protocol: connection
// pooling across a discovered cluster, role- and tag-aware read
// preference, a batched-write planner, and typed reply callbacks.
//
// A Client is the entry point. It discovers a cluster from a seed list,
// probes each member's role and capabilities on a fixed interval, and
// dispatches every message through a Pool that picks a connection by a
// scan-then-grow-then-least-loaded-then-wait ladder.
//
//	client, err := docdb.NewClient(docdb.Config{Seeds: []string{"localhost:27017"}})
//	if err != nil {
//		// ...
//	}
//	defer client.Close()
package docdb
