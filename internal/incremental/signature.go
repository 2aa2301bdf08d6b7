// Package incremental decides what work a stage can skip: destination freshness
// checks, content fingerprints and the persistent optimizer cache.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Fingerprint returns the cache key for content processed by a transform with
// the given signature. Changing either the bytes or the transform settings
// yields a new key.
func Fingerprint(data []byte, signature string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(signature))
	return hex.EncodeToString(h.Sum(nil))
}

// FileStat is the cheap identity of a file used for polling change detection.
type FileStat struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// TreeSignature computes a deterministic hash over a set of file stats.
// Order of the input does not matter.
func TreeSignature(files []FileStat) string {
	sorted := make([]FileStat, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", f.Path, f.Size, f.ModTime.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
