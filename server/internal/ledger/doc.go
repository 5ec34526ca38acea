// Package ledger keeps an append-only audit trail of Golden Signature
// approvals in SQLite or PostgreSQL. The ledger is write-mostly: sessions are
// never rebuilt from it.
package ledger
