package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FSStore is a filesystem-based implementation of ObjectStore.
// It stores objects in a content-addressable layout:
//
//	.imagecache/
//	  objects/
//	    ab/
//	      cd1234...           (first 2 chars = subdir, rest = filename)
//	      cd1234....meta.json
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a new filesystem-based object store.
func NewFSStore(basePath string) (*FSStore, error) {
	dir := filepath.Join(basePath, "objects")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Path returns the store root.
func (fs *FSStore) Path() string { return fs.basePath }

// Put stores an object and returns its key.
func (fs *FSStore) Put(_ context.Context, obj *Object) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	hash := obj.Hash
	if hash == "" {
		h := sha256.Sum256(obj.Data)
		hash = hex.EncodeToString(h[:])
	}
	if err := validKey(hash); err != nil {
		return "", err
	}

	objectPath := fs.objectPath(hash)
	if _, err := os.Stat(objectPath); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	// Objects appear under their final name only once fully written.
	tmp := objectPath + ".tmp"
	if err := os.WriteFile(tmp, obj.Data, 0o600); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp, objectPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit object: %w", err)
	}

	metadata := Metadata{
		CreatedAt: time.Now(),
		Custom:    make(map[string]string, len(obj.Metadata.Custom)+1),
	}
	for k, v := range obj.Metadata.Custom {
		metadata.Custom[k] = v
	}
	metadata.Custom[MetaObjectType] = string(obj.Type)

	if err := fs.writeMetadata(hash, metadata); err != nil {
		return hash, fmt.Errorf("write metadata: %w", err)
	}
	return hash, nil
}

// Get retrieves an object by key.
func (fs *FSStore) Get(_ context.Context, hash string) (*Object, error) {
	if err := validKey(hash); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - objectPath is internal, constructed from a validated key
	data, err := os.ReadFile(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Hash: hash}
		}
		return nil, fmt.Errorf("read object: %w", err)
	}

	metadata, err := fs.readMetadata(hash)
	if err != nil {
		slog.Debug("Object metadata missing", "hash", hash, "error", err)
		metadata = Metadata{Custom: map[string]string{}}
	}

	return &Object{
		Hash:     hash,
		Type:     ObjectType(metadata.Custom[MetaObjectType]),
		Size:     int64(len(data)),
		Data:     data,
		Metadata: metadata,
	}, nil
}

// Exists checks if an object with the given key exists.
func (fs *FSStore) Exists(_ context.Context, hash string) (bool, error) {
	if err := validKey(hash); err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// List returns all keys matching the given type filter.
func (fs *FSStore) List(_ context.Context, objectType ObjectType) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var hashes []string
	err := fs.walk(func(hash string, _ int64) {
		if objectType != "" {
			metadata, err := fs.readMetadata(hash)
			if err == nil && ObjectType(metadata.Custom[MetaObjectType]) != objectType {
				return
			}
		}
		hashes = append(hashes, hash)
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// Stats counts objects and bytes.
func (fs *FSStore) Stats(_ context.Context) (Stats, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	stats := Stats{ByType: make(map[ObjectType]int)}
	err := fs.walk(func(hash string, size int64) {
		stats.Objects++
		stats.Bytes += size
		objectType := ObjectType("unknown")
		if metadata, err := fs.readMetadata(hash); err == nil && metadata.Custom[MetaObjectType] != "" {
			objectType = ObjectType(metadata.Custom[MetaObjectType])
		}
		stats.ByType[objectType]++
	})
	return stats, err
}

// Close releases resources.
func (fs *FSStore) Close() error {
	return nil
}

func (fs *FSStore) walk(fn func(hash string, size int64)) error {
	objectsDir := filepath.Join(fs.basePath, "objects")
	err := filepath.Walk(objectsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".meta.json") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		relPath, err := filepath.Rel(objectsDir, path)
		if err != nil {
			return nil
		}
		fn(strings.ReplaceAll(relPath, string(filepath.Separator), ""), info.Size())
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk objects: %w", err)
	}
	return nil
}

// objectPath returns the filesystem path for an object.
func (fs *FSStore) objectPath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(fs.basePath, "objects", hash)
	}
	return filepath.Join(fs.basePath, "objects", hash[:2], hash[2:])
}

func (fs *FSStore) metadataPath(hash string) string {
	return fs.objectPath(hash) + ".meta.json"
}

func (fs *FSStore) readMetadata(hash string) (Metadata, error) {
	// #nosec G304 - metadataPath is internal, constructed from a validated key
	data, err := os.ReadFile(fs.metadataPath(hash))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if metadata.Custom == nil {
		metadata.Custom = map[string]string{}
	}
	return metadata, nil
}

func (fs *FSStore) writeMetadata(hash string, metadata Metadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(fs.metadataPath(hash), data, 0o600)
}

// validKey rejects keys that could escape the objects directory.
func validKey(hash string) error {
	if hash == "" {
		return fmt.Errorf("empty object key")
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("invalid object key %q: must be lowercase hex", hash)
		}
	}
	return nil
}
