package dualstore

import (
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Schema is the per-entity configuration of a Client.
type Schema[T any, K comparable] struct {
	// Name labels the collection in logs and metrics.
	Name string
	// Key returns the record key.
	Key func(T) K
	// WithKey returns rec carrying key.
	WithKey func(rec T, key K) T
	// Stamp returns rec with its timestamps set. A zero created keeps the
	// record's current creation time.
	Stamp func(rec T, created, updated time.Time) T
	// Validate checks input to Create. Optional.
	Validate func(T) error
	// NewKey generates keys for records created offline.
	NewKey KeyGenerator[K]
}

// KeyGenerator returns a key for a record created locally. taken reports
// whether a candidate is already in use in the cached collection.
type KeyGenerator[K comparable] func(now time.Time, taken func(K) bool) K

// IntKeys generates integer keys from the wall clock in milliseconds
// followed by three digits of per-process sequence. Keys from one generator
// strictly increase, and any key already present in the cache is skipped.
func IntKeys[K ~int | ~int64]() KeyGenerator[K] {
	var (
		mu   sync.Mutex
		last int64
	)
	return func(now time.Time, taken func(K) bool) K {
		mu.Lock()
		defer mu.Unlock()

		candidate := now.UnixMilli() * 1000
		if candidate <= last {
			candidate = last + 1
		}
		for taken != nil && taken(K(candidate)) {
			candidate++
		}
		last = candidate
		return K(candidate)
	}
}

// StringKeys generates "local-<uuid>" keys.
func StringKeys() KeyGenerator[string] {
	return func(_ time.Time, taken func(string) bool) string {
		for {
			key := "local-" + uuid.NewString()
			if taken == nil || !taken(key) {
				return key
			}
		}
	}
}

// Filter restricts List. Query is sent to the remote store; Match applies the
// same restriction to cached records.
type Filter[T any] interface {
	Query() url.Values
	Match(T) bool
}

// Where builds a Filter from query values and the equivalent predicate.
func Where[T any](query url.Values, match func(T) bool) Filter[T] {
	return where[T]{query: query, match: match}
}

type where[T any] struct {
	query url.Values
	match func(T) bool
}

func (w where[T]) Query() url.Values { return w.query }

func (w where[T]) Match(rec T) bool {
	if w.match == nil {
		return true
	}
	return w.match(rec)
}

// Patch is a typed partial update. Apply overrides the fields the patch sets
// and leaves the rest of rec untouched.
type Patch[T any] interface {
	Apply(rec T) T
	Validate() error
}

// LocalBulk computes the records a collection action creates when it runs
// against the cache. create assigns a fresh key and timestamps to a record;
// the returned records are appended to the collection.
type LocalBulk[T any] func(current []T, create func(T) T) ([]T, error)
