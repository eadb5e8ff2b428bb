package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("portal")

type boltEntry struct {
	Value     []byte    `json:"v"`
	ExpiresAt time.Time `json:"e,omitempty"`
}

// BoltStore persists entries in a single bbolt bucket. Expiry is stored with the value and
// enforced on read; Sweep removes what has expired.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bbolt bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func decodeBoltEntry(data []byte) (*boltEntry, error) {
	var entry boltEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding bbolt entry: %w", err)
	}
	return &entry, nil
}

func (s *BoltStore) put(b *bbolt.Bucket, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(boltEntry{Value: value, ExpiresAt: expiryFor(ttl, s.now())})
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// live returns the unexpired entry stored under key, or ErrNotFound.
func (s *BoltStore) live(b *bbolt.Bucket, key string) (*boltEntry, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return nil, ErrNotFound
	}
	entry, err := decodeBoltEntry(data)
	if err != nil {
		return nil, err
	}
	if isExpired(entry.ExpiresAt, s.now()) {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		entry, err := s.live(tx.Bucket(boltBucket), key)
		if err != nil {
			return err
		}
		value = entry.Value
		return nil
	})
	return value, err
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.put(tx.Bucket(boltBucket), key, value, ttl)
	})
}

func (s *BoltStore) GetDel(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		entry, err := s.live(b, key)
		if delErr := b.Delete([]byte(key)); delErr != nil {
			return delErr
		}
		if err != nil {
			return err
		}
		value = entry.Value
		return nil
	})
	return value, err
}

func (s *BoltStore) CompareAndSwap(_ context.Context, key string, prev, next []byte, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		entry, err := s.live(b, key)
		if err != nil {
			return err
		}
		if !bytes.Equal(entry.Value, prev) {
			return ErrConflict
		}
		return s.put(b, key, next, ttl)
	})
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

func (s *BoltStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			entry, err := decodeBoltEntry(v)
			if err != nil || isExpired(entry.ExpiresAt, s.now()) {
				continue
			}
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

func (s *BoltStore) Sweep(_ context.Context) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)

		var expired [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			entry, err := decodeBoltEntry(v)
			if err != nil || isExpired(entry.ExpiresAt, s.now()) {
				expired = append(expired, bytes.Clone(k))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
