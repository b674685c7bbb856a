// Package kv implements the key-value persistence layer of spec.md
// section 6: per-read alignment state, keyed by decimal read ID, surviving
// across index parts. Per the rewrite's design note, this is a
// write-behind cache rather than a synchronous store -- Put buffers in
// memory and Flush (called by the pipeline Coordinator at the end of each
// index part) pushes the
// whole snapshot to durable storage in one shot via grailbio/base/file,
// mirroring how the teacher's PAM writer batches field blocks before a
// single flush (encoding/pam/pamwriter.go).
package kv

import (
	"context"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Store is the per-read state persistence contract the pipeline Coordinator
// uses between index parts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// MemStore is an in-memory Store, useful for tests and for single-part runs
// where no cross-part persistence is needed. Flush and Close are no-ops.
type MemStore struct {
	data *shardedMap
}

func NewMemStore() *MemStore {
	return &MemStore{data: newShardedMap()}
}

func (s *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.data.get(key)
	return v, ok, nil
}

func (s *MemStore) Put(_ context.Context, key string, value []byte) error {
	s.data.put(key, value)
	return nil
}

func (s *MemStore) Flush(context.Context) error { return nil }
func (s *MemStore) Close(context.Context) error { return nil }

// FileStore is a write-behind cache over a single snapshot file: Put only
// touches the in-memory map; Flush serializes the whole map to path in one
// write, and Get reads from the in-memory map (populated by OpenFileStore
// at startup), never from disk directly, so reads never block on I/O.
type FileStore struct {
	path string
	data *shardedMap
}

// OpenFileStore loads an existing snapshot from path, if any, and returns a
// FileStore ready for Get/Put/Flush. A missing file is not an error: it
// means no prior run persisted state here yet.
func OpenFileStore(ctx context.Context, path string) (*FileStore, error) {
	s := &FileStore{path: path, data: newShardedMap()}
	f, err := file.Open(ctx, path)
	if err != nil {
		return s, nil
	}
	defer f.Close(ctx)
	data, err := loadSnapshot(f.Reader(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "load kv snapshot %s", path)
	}
	s.data.loadInto(data)
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.data.get(key)
	return v, ok, nil
}

func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	s.data.put(key, value)
	return nil
}

// Flush writes the entire snapshot to s.path, overwriting any prior
// contents. It is called by the pipeline Coordinator (persistSets) after
// each index part finishes (spec.md section 4.9, step 3).
func (s *FileStore) Flush(ctx context.Context) error {
	w, err := file.Create(ctx, s.path)
	if err != nil {
		return errors.Wrapf(err, "create kv snapshot %s", s.path)
	}
	defer w.Close(ctx)
	return writeSnapshot(w.Writer(ctx), s.data.flatten())
}

func (s *FileStore) Close(ctx context.Context) error {
	return s.Flush(ctx)
}
