// Package storage provides the content-addressed object store backing the image cache.
package storage

import (
	"context"
	"time"
)

// ObjectStore stores immutable objects under a caller-supplied or content-derived key.
// Stores are append-only: nothing is ever evicted or deleted.
type ObjectStore interface {
	// Put stores an object and returns its key.
	// If the key already exists the existing object is kept and nothing is written.
	Put(ctx context.Context, obj *Object) (key string, err error)

	// Get retrieves an object. Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (*Object, error)

	// Exists checks whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys of the given type, or every key when objectType is empty.
	List(ctx context.Context, objectType ObjectType) ([]string, error)

	// Stats summarizes the store contents.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Object is a stored blob with its metadata.
type Object struct {
	// Hash is the object key. When empty, Put derives it from the SHA256 of Data.
	Hash     string
	Type     ObjectType
	Size     int64
	Data     []byte
	Metadata Metadata
}

// Metadata is persisted beside each object.
type Metadata struct {
	CreatedAt time.Time
	Custom    map[string]string
}

// Stats describes store occupancy.
type Stats struct {
	Objects int
	Bytes   int64
	ByType  map[ObjectType]int
}

// ObjectType identifies the kind of stored object.
type ObjectType string

const (
	// ObjectTypeOptimizedImage is the optimizer output for one source image.
	ObjectTypeOptimizedImage ObjectType = "optimized_image"
)

// Custom metadata keys.
const (
	MetaObjectType   = "object_type"
	MetaSource       = "source"
	MetaOriginalSize = "original_size"
)

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
