// Package devserver implements a small in-memory storage node speaking the
// same HTTP protocol the sync client consumes: info/collections, meta/global,
// collection and record CRUD, X-Weave-* headers, X-If-Unmodified-Since
// preconditions, and a token exchange endpoint.
//
// It exists for local development and integration tests; nothing it stores
// survives a restart.
package devserver
