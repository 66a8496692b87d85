package contract

import "context"

// KeyValueStore is the durable local store. Callers treat it as synchronous.
type KeyValueStore interface {
	// Get returns found=false for a missing key.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
