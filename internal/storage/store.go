// Package storage provides the key-value capability the chat registry persists
// through. Every backend reports success or failure explicitly; callers never
// assume storage is synchronous or always available.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// Store is a string-keyed, string-valued persistent map.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by backends holding external resources.
type Closer interface {
	Close() error
}

// Close releases the store's resources when it has any.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
