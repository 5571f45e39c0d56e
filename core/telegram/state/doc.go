// Package state keeps per-user conversation sessions in memory.
//
// A session is any value the caller chooses; the store only tracks when it was
// last written. Lock serializes one user's read-modify-write cycles without
// blocking other users.
package state
