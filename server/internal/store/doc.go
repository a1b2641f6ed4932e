// Package store holds the latest analysis of every live session in memory.
// Each Put folds one record into the session's Entry, keeping the last
// analyzed frame and running frame, valid-frame and error counts. Sessions
// that stop reporting are evicted after the configured TTL.
package store
