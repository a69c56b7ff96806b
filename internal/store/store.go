// Package store defines the Store interface the policy compiler and the
// orchestrator's persistence layer depend on, plus a file-backed
// implementation with fsnotify-based hot reload.
package store

import "context"

// Store is an opaque key/value persistence layer. The router only ever
// reads/writes "router/router/0" and "router/tester/0", plus whatever
// asset/policy document paths the policy compiler resolves.
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Fixed persistence paths for the production and test entry tables.
const (
	RouterTablePath = "router/router/0"
	TesterTablePath = "router/tester/0"
)
