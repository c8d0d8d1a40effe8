// Package storage provides the persistence backends behind the StoreData
// operation. A Store keeps values under (kind, key) where kind names the
// requested backend semantics: localStorage survives across executions,
// sessionStorage is scoped to the process lifetime, and file persists to
// durable media.
package storage

import "context"

// Store persists workflow values by backend kind and key.
type Store interface {
	Put(ctx context.Context, kind, key string, value any) error
	Get(ctx context.Context, kind, key string) (any, bool, error)
	Delete(ctx context.Context, kind, key string) error
	Close() error
}
