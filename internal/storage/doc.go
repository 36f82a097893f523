// Package storage keeps an optional journal of task firings and call
// outcomes so recent activity survives restarts. Tasks themselves are never
// stored.
//
// Backends:
//   - "file": JSON Lines, dependency-free
//   - "sqlite": a SQLite database through modernc.org/sqlite
package storage
