// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// that the engine and runner never depend on concrete storage.
//
// Additional backends (Redis, Postgres, etc.) can be added in sub-packages
// without changing calling code; only the wiring layer decides which
// implementation to instantiate.
package session
