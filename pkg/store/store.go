// Package store persists the server's in-process state to PostgreSQL:
// loops, memory items, learned payload patterns, and circuit states.
//
// Persistence is write-behind. The in-process components stay authoritative;
// the database is a recovery substrate, flushed periodically and on
// shutdown. A flush that fails is logged and retried on the next tick —
// it never stalls a loop.
package store

import "errors"

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("store: not found")
