package store

import (
	"context"
	"errors"
)

// Slot names used by the storefront state container.
const (
	SlotCart     = "cart"
	SlotWishlist = "wishlist"
)

var (
	// ErrSlotNotFound is returned by Load when nothing was ever saved under the slot.
	ErrSlotNotFound = errors.New("slot not found")
	ErrInvalidSlot  = errors.New("invalid slot name")
)

// Store keeps whole-collection blobs under named slots. Save overwrites the
// previous blob; there is no append or patch.
type Store interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error

	Close() error
}

// SlotName prefixes slot with namespace so several shoppers can share one backend store.
func SlotName(namespace, slot string) string {
	if namespace == "" {
		return slot
	}
	return namespace + "." + slot
}
