// Package webui serves the editable-table page: a grid bound to one
// DynamoDB (or local badger) table, with per-session edit state.
//
// It exposes a small JSON API:
//   - GET /api/table loads the session's table snapshot, with nested
//     columns rendered as JSON text
//   - POST /api/edits applies one render cycle's diff of edited, added
//     and deleted rows
//   - POST /api/refresh drops the snapshot so the next load re-fetches
//
// # Usage
//
// Start the server against a table described in a YAML config:
//
//	ddbgrid -config ./ddbgrid.yaml -port 8080
//
// The config names the table and its key column and selects either AWS
// or the local store:
//
//	table:
//	  name: widgets
//	  partitionKey:
//	    name: id
//	    kind: S
//	local:
//	  enabled: true
//	  path: ./data
//
// With local.enabled the server runs against a badger database (in
// memory when path is empty), so no AWS credentials are needed.
package webui
