// Package types defines the shared Go types passed between the scorer, the
// session store, the HTTP API and the CLI. These are the canonical in-memory
// representations of a scored manufacturing batch.
package types
