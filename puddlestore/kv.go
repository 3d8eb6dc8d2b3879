package puddlestore

import "errors"

var (
	ErrKeyExists          = errors.New("puddlestore: key already exists")
	ErrKeyNotFound        = errors.New("puddlestore: key not found")
	ErrPartitionNotFound  = errors.New("puddlestore: partition not found")
	ErrEmptyPartitionName = errors.New("puddlestore: partition name is empty")
	ErrClosed             = errors.New("puddlestore: kv is closed")
)

// KV is the named ordered keyed byte store the puddle store is built on. Each
// partition is an independent sorted map. Nothing is assumed about
// transactions spanning partitions.
//
// Values returned by Get and passed to ForEach are owned by the caller.
type KV interface {
	// CreatePartition creates the partition if it does not already exist.
	CreatePartition(name []byte) error
	HasPartition(name []byte) (bool, error)

	// Get returns ErrPartitionNotFound or ErrKeyNotFound when absent.
	Get(partition, key []byte) ([]byte, error)

	// Insert stores the value and refuses to overwrite with ErrKeyExists. The
	// partition is created on demand.
	Insert(partition, key, value []byte) error

	// Partitions lists the partition names in byte order.
	Partitions() ([][]byte, error)

	// ForEach visits the keys of the partition in byte order. Returning an
	// error from fn stops the walk and is returned.
	ForEach(partition []byte, fn func(key, value []byte) error) error

	// Sync makes every completed Insert durable.
	Sync() error
	Close() error
}
