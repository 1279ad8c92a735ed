package store

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"
)

// BadgerStore is the durable KV backend: a BadgerDB LSM tree on disk,
// fronted by a Ristretto admission/eviction cache. Get checks the hot
// cache first and falls back to Badger, admitting the value on a miss-then-
// hit so repeatedly read keys stay resident without the protocol core
// itself needing an eviction policy (spec.md §1 treats eviction as an
// external collaborator).
type BadgerStore struct {
	db  *badger.DB
	hot *ristretto.Cache[string, []byte]
}

// BadgerOptions configures a new BadgerStore.
type BadgerOptions struct {
	Path         string
	HotCacheCost int64 // total cost budget for the Ristretto hot cache, in bytes
}

// OpenBadgerStore opens (creating if necessary) a BadgerDB at opts.Path and
// wraps it with a Ristretto hot cache sized by opts.HotCacheCost.
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	dbOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %q: %w", opts.Path, err)
	}

	cost := opts.HotCacheCost
	if cost <= 0 {
		cost = 256 << 20
	}
	hot, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cost / 1024 * 10,
		MaxCost:     cost,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating hot cache: %w", err)
	}

	return &BadgerStore{db: db, hot: hot}, nil
}

func (s *BadgerStore) Close() error {
	s.hot.Close()
	return s.db.Close()
}

func (s *BadgerStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := s.hot.Get(string(key)); ok {
		return v, nil
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.hot.Set(string(key), value, int64(len(value)))
	return value, nil
}

func (s *BadgerStore) Set(ctx context.Context, key, value []byte, expireSeconds uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, value)
		if expireSeconds > 0 {
			e = e.WithTTL(time.Duration(expireSeconds) * time.Second)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return err
	}
	s.hot.Del(string(key))
	return nil
}

func (s *BadgerStore) Add(ctx context.Context, key, value []byte, expireSeconds uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		e := badger.NewEntry(key, value)
		if expireSeconds > 0 {
			e = e.WithTTL(time.Duration(expireSeconds) * time.Second)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return err
	}
	s.hot.Del(string(key))
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	s.hot.Del(string(key))
	return err
}

// Evict drops key from the hot cache only, leaving the durable copy in
// Badger intact — the admission-policy counterpart to Delete.
func (s *BadgerStore) Evict(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hot.Del(string(key))
	return nil
}

func (s *BadgerStore) Exists(ctx context.Context, key []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := s.hot.Get(string(key)); ok {
		return true, nil
	}
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

func (s *BadgerStore) Touch(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		ttl := item.ExpiresAt()
		return item.Value(func(val []byte) error {
			e := badger.NewEntry(key, append([]byte{}, val...))
			if ttl > 0 {
				e = e.WithTTL(time.Until(time.Unix(int64(ttl), 0)))
			}
			return txn.SetEntry(e)
		})
	})
}

func (s *BadgerStore) Index(ctx context.Context) ([]IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []IndexEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := append([]byte{}, item.KeyCopy(nil)...)
			entries = append(entries, IndexEntry{Key: key, VLen: uint32(item.ValueSize())})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
