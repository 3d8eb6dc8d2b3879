package puddlestore

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

const memDegree = 16

type memItem struct {
	key   []byte
	value []byte
}

func (a memItem) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(memItem).key) < 0
}

type memPartition struct {
	name []byte
	tree *btree.BTree
}

func (a *memPartition) Less(than btree.Item) bool {
	return bytes.Compare(a.name, than.(*memPartition).name) < 0
}

// MemKV implements KV in memory, partitions and their keys are kept in
// btrees so listing and iteration are ordered like the bolt backend.
type MemKV struct {
	mu         sync.RWMutex
	partitions *btree.BTree
	closed     bool
}

func NewMemKV() *MemKV {
	return &MemKV{partitions: btree.New(memDegree)}
}

func (kv *MemKV) partition(name []byte) *memPartition {
	item := kv.partitions.Get(&memPartition{name: name})
	if item == nil {
		return nil
	}
	return item.(*memPartition)
}

func (kv *MemKV) create(name []byte) *memPartition {
	if p := kv.partition(name); p != nil {
		return p
	}
	p := &memPartition{name: bytes.Clone(name), tree: btree.New(memDegree)}
	kv.partitions.ReplaceOrInsert(p)
	return p
}

func (kv *MemKV) CreatePartition(name []byte) error {
	if len(name) == 0 {
		return ErrEmptyPartitionName
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.closed {
		return ErrClosed
	}
	kv.create(name)
	return nil
}

func (kv *MemKV) HasPartition(name []byte) (bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return false, ErrClosed
	}
	return kv.partition(name) != nil, nil
}

func (kv *MemKV) Get(partition, key []byte) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return nil, ErrClosed
	}
	p := kv.partition(partition)
	if p == nil {
		return nil, ErrPartitionNotFound
	}
	item := p.tree.Get(memItem{key: key})
	if item == nil {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(item.(memItem).value), nil
}

func (kv *MemKV) Insert(partition, key, value []byte) error {
	if len(partition) == 0 {
		return ErrEmptyPartitionName
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.closed {
		return ErrClosed
	}
	p := kv.create(partition)
	if p.tree.Has(memItem{key: key}) {
		return ErrKeyExists
	}
	p.tree.ReplaceOrInsert(memItem{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (kv *MemKV) Partitions() ([][]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return nil, ErrClosed
	}
	names := make([][]byte, 0, kv.partitions.Len())
	kv.partitions.Ascend(func(i btree.Item) bool {
		names = append(names, bytes.Clone(i.(*memPartition).name))
		return true
	})
	return names, nil
}

func (kv *MemKV) ForEach(partition []byte, fn func(key, value []byte) error) error {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return ErrClosed
	}
	p := kv.partition(partition)
	if p == nil {
		return ErrPartitionNotFound
	}
	var err error
	p.tree.Ascend(func(i btree.Item) bool {
		item := i.(memItem)
		err = fn(bytes.Clone(item.key), bytes.Clone(item.value))
		return err == nil
	})
	return err
}

func (kv *MemKV) Sync() error { return nil }

func (kv *MemKV) Close() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.closed = true
	return nil
}
