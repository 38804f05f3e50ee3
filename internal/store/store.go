// Package store persists index definitions and other engine metadata.
package store

// Store is the persistence contract for engine metadata. Values are
// JSON-encoded documents addressed by a string key.
type Store interface {
	// Get unmarshals the value stored under key into out.
	// Returns (false, nil) when the key is absent.
	Get(key string, out any) (bool, error)

	// Put stores value under key, replacing any existing entry.
	Put(key string, value any) error

	// Delete removes the entry for key. Removing an absent key is a no-op.
	Delete(key string) error

	// Keys returns all stored keys.
	Keys() ([]string, error)

	// Close releases the underlying resources.
	Close() error
}
