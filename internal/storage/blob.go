package storage

import "io"

// BlobStore holds uploaded question images keyed by author-chosen name.
// Put overwrites an existing key: duplicate uploads are last-write-wins.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Exists(key string) bool
}
