package puddlestore

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltKV implements KV over a single bbolt file. Partitions are top level
// buckets.
type BoltKV struct {
	db *bolt.DB
}

type BoltOptions struct {
	// Timeout bounds the wait for the file lock, zero waits forever.
	Timeout time.Duration
	// NoSync skips the fsync of every commit, Sync must then be called to
	// make inserts durable.
	NoSync   bool
	ReadOnly bool
}

// OpenBolt opens or creates the store file at path.
func OpenBolt(path string, opts BoltOptions) (*BoltKV, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory for %q", path)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt db %q", path)
	}
	db.NoSync = opts.NoSync
	return &BoltKV{db: db}, nil
}

func (kv *BoltKV) Path() string { return kv.db.Path() }

func (kv *BoltKV) CreatePartition(name []byte) error {
	if len(name) == 0 {
		return ErrEmptyPartitionName
	}
	return kv.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return errors.Wrapf(err, "create partition %x", name)
	})
}

func (kv *BoltKV) HasPartition(name []byte) (bool, error) {
	var ok bool
	err := kv.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(name) != nil
		return nil
	})
	return ok, err
}

func (kv *BoltKV) Get(partition, key []byte) ([]byte, error) {
	var value []byte
	err := kv.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(partition)
		if b == nil {
			return ErrPartitionNotFound
		}
		v := b.Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		// bolt values are only valid for the life of the transaction
		value = bytes.Clone(v)
		return nil
	})
	return value, err
}

func (kv *BoltKV) Insert(partition, key, value []byte) error {
	if len(partition) == 0 {
		return ErrEmptyPartitionName
	}
	return kv.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(partition)
		if err != nil {
			return errors.Wrapf(err, "create partition %x", partition)
		}
		if b.Get(key) != nil {
			return ErrKeyExists
		}
		return errors.Wrapf(b.Put(key, value), "put key %x in partition %x", key, partition)
	})
}

func (kv *BoltKV) Partitions() ([][]byte, error) {
	var names [][]byte
	err := kv.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, bytes.Clone(name))
			return nil
		})
	})
	return names, err
}

func (kv *BoltKV) ForEach(partition []byte, fn func(key, value []byte) error) error {
	return kv.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(partition)
		if b == nil {
			return ErrPartitionNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(bytes.Clone(k), bytes.Clone(v))
		})
	})
}

func (kv *BoltKV) Sync() error {
	return errors.Wrap(kv.db.Sync(), "sync bolt db")
}

func (kv *BoltKV) Close() error {
	return errors.Wrap(kv.db.Close(), "close bolt db")
}
