// Package session holds the per-session Golden Signature state. Each session
// owns its own reference batch, initialized from the stable arg-max of the
// dataset it was created with and replaced only by an approved candidate.
// Idle sessions are evicted after a TTL.
package session
