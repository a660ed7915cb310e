package form

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/dirk.krummacker/user-management/internal/storage"
)

// LastIDKey is the session storage item holding the last assigned user id as a decimal string.
const LastIDKey = "lastUserId"

// IDAllocator hands out increasing user ids. The counter lives in the session storage, so a
// new allocator on the same session continues where the previous one stopped.
type IDAllocator struct {
	storage storage.Storage
}

// NewIDAllocator creates an allocator on the given session storage.
func NewIDAllocator(s storage.Storage) *IDAllocator {
	return &IDAllocator{storage: s}
}

// Peek returns the id the next user will get. A missing or non-numeric counter counts as 0.
func (a *IDAllocator) Peek(ctx context.Context) (int, error) {
	value, ok, err := a.storage.GetItem(ctx, LastIDKey)
	if err != nil {
		return 0, fmt.Errorf("error reading last user id: %w", err)
	}
	last := 0
	if ok {
		if n, errConv := strconv.Atoi(strings.TrimSpace(value)); errConv == nil {
			last = n
		}
	}
	return last + 1, nil
}

// Commit records id as the last assigned id.
func (a *IDAllocator) Commit(ctx context.Context, id int) error {
	if err := a.storage.SetItem(ctx, LastIDKey, strconv.Itoa(id)); err != nil {
		return fmt.Errorf("error writing last user id: %w", err)
	}
	return nil
}

// Next assigns and returns the next id.
func (a *IDAllocator) Next(ctx context.Context) (int, error) {
	id, err := a.Peek(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.Commit(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}
