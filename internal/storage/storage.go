// Package storage provides durable key/value storage scoped to a single session. Items of a
// session are removed when the session ends.
package storage

import "context"

// Storage is the key/value storage of one session.
type Storage interface {
	// GetItem returns the value stored under name. ok is false if there is no such item.
	GetItem(ctx context.Context, name string) (value string, ok bool, err error)

	// SetItem stores value under name, replacing a previous value.
	SetItem(ctx context.Context, name string, value string) error

	// RemoveItem deletes the item stored under name. Removing a missing item is not an error.
	RemoveItem(ctx context.Context, name string) error
}

// Provider hands out the storage of individual sessions.
type Provider interface {
	// Session returns the storage of the session with the given id.
	Session(id string) Storage

	// EndSession deletes all items of the session with the given id.
	EndSession(ctx context.Context, id string) error
}
