// Package harness runs document-query scenarios as executable contract
// tests.
//
// A scenario loads documents into a fresh in-memory SQLite store and into
// the reference evaluator (package eval), runs one query against both and
// checks the assertions. Every run also cross-checks the two engines: the
// matched ids, the count and, for sorted limited queries, the full cursor
// walk must agree.
//
// # Scenario Format
//
//	name: active_users_by_date
//	description: "Active users, newest first"
//	collection: users            # default "docs"
//	schema:                      # inline schema, or schema_file: path
//	  fields:
//	    - {name: status, type: text, indexed: true}
//	    - {name: createdAt, type: text, indexed: true}
//	documents:
//	  - id: u1                   # optional, defaults to doc-0001, ...
//	    body: {status: active, createdAt: "2024-01-01"}
//	query:
//	  status: active
//	options:
//	  sort: ["-createdAt"]
//	  limit: 2
//	assertions:
//	  - type: ids
//	    ids: [u2, u1]
//	  - type: pages
//	    pages: [[u2, u1], [u4]]
//
// # Assertion Types
//
//   - ids: the first page, in order
//   - contains: ids that must be on the first page, any order
//   - excludes: ids that must not be on the first page
//   - count: number of matching documents, ignoring options
//   - pages: every page of the cursor walk, in order
//   - sql_contains: a fragment of the compiled SELECT
//   - error: the query is rejected with the given error kind
//
// # Golden Files
//
// RunWithGolden snapshots the compiled SQL and parameters under
// testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
