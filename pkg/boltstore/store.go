// Package boltstore implements the document-store contracts over bbolt:
// the world collection (pkg/world's Store) and the accounts collection.
// Revisions are monotonic per-document counters rendered as opaque strings.
package boltstore

import (
	"fmt"
	"log"
	"os"
	"strconv"

	bbolt "go.etcd.io/bbolt"

	"github.com/adamdray/gaia-mud/pkg/world"
)

// WorldStore is the bbolt-backed world document collection.
type WorldStore struct {
	bolt *bbolt.DB
}

// OpenWorld opens or creates the world database file.
func OpenWorld(path string) (*WorldStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketObjects, bucketMeta, idxLocation, idxOwner} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}
	return &WorldStore{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *WorldStore) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the database.
func (s *WorldStore) Path() string { return s.bolt.Path() }

func parseRev(rev string) (uint64, error) {
	if rev == "" {
		return 0, nil
	}
	return strconv.ParseUint(rev, 10, 64)
}

// Fetch implements world.Store.
func (s *WorldStore) Fetch(id string) (*world.Object, error) {
	var obj *world.Object
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketObjects).Get([]byte(id))
		if data == nil {
			return world.ErrNotFound
		}
		decoded, rev, err := decodeObject(data)
		if err != nil {
			return fmt.Errorf("boltstore: decode %s: %w", id, err)
		}
		decoded.Rev = strconv.FormatUint(rev, 10)
		obj = decoded
		return nil
	})
	return obj, err
}

// Store implements world.Store: optimistic write checking the prior
// revision. An empty prior revision is a create and fails on collision.
func (s *WorldStore) Store(obj *world.Object, priorRev string) (string, error) {
	prior, err := parseRev(priorRev)
	if err != nil {
		return "", fmt.Errorf("boltstore: bad revision %q: %w", priorRev, err)
	}

	var newRev uint64
	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		key := []byte(obj.ID)

		var curRev uint64
		var prevLoc, prevOwner string
		if data := b.Get(key); data != nil {
			prev, rev, derr := decodeObject(data)
			if derr != nil {
				return fmt.Errorf("boltstore: decode %s: %w", obj.ID, derr)
			}
			curRev = rev
			prevLoc = prev.LocationID
			prevOwner = prev.OwnerID
			if prior != curRev {
				return world.ErrConflict
			}
		} else if prior != 0 {
			return world.ErrConflict
		}

		newRev = curRev + 1
		data, eerr := encodeObject(obj, newRev)
		if eerr != nil {
			return fmt.Errorf("boltstore: encode %s: %w", obj.ID, eerr)
		}
		if err := b.Put(key, data); err != nil {
			return err
		}

		if err := updateIndex(tx.Bucket(idxLocation), prevLoc, obj.LocationID, obj.ID); err != nil {
			return err
		}
		return updateIndex(tx.Bucket(idxOwner), prevOwner, obj.OwnerID, obj.ID)
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(newRev, 10), nil
}

// DeleteByID implements world.Store.
func (s *WorldStore) DeleteByID(id, priorRev string) error {
	prior, err := parseRev(priorRev)
	if err != nil {
		return fmt.Errorf("boltstore: bad revision %q: %w", priorRev, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		data := b.Get([]byte(id))
		if data == nil {
			return world.ErrNotFound
		}
		prev, rev, derr := decodeObject(data)
		if derr != nil {
			return fmt.Errorf("boltstore: decode %s: %w", id, derr)
		}
		if prior != 0 && prior != rev {
			return world.ErrConflict
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		if err := updateIndex(tx.Bucket(idxLocation), prev.LocationID, "", id); err != nil {
			return err
		}
		return updateIndex(tx.Bucket(idxOwner), prev.OwnerID, "", id)
	})
}

// ListByIndex implements world.Store. Supported indexes: "location", "owner".
func (s *WorldStore) ListByIndex(name, key string) ([]string, error) {
	var bucket []byte
	switch name {
	case "location":
		bucket = idxLocation
	case "owner":
		bucket = idxOwner
	default:
		return nil, fmt.Errorf("boltstore: unknown index %q", name)
	}

	var ids []string
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		prefix := compositeKey(key, "")
		for k, _ := c.Seek(prefix); k != nil; k, _ = c.Next() {
			member := splitComposite(k, key)
			if member == "" {
				break
			}
			ids = append(ids, member)
		}
		return nil
	})
	return ids, err
}

// ForEach iterates every stored object.
func (s *WorldStore) ForEach(fn func(*world.Object) error) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			obj, rev, err := decodeObject(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode %s: %w", string(k), err)
			}
			obj.Rev = strconv.FormatUint(rev, 10)
			return fn(obj)
		})
	})
}

// Count returns the number of stored objects.
func (s *WorldStore) Count() int {
	n := 0
	s.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketObjects).Stats().KeyN
		return nil
	})
	return n
}

// Backup writes a hot snapshot of the database using tx.WriteTo().
func (s *WorldStore) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

// updateIndex moves a composite index entry from oldKey to newKey.
func updateIndex(b *bbolt.Bucket, oldKey, newKey, member string) error {
	if oldKey == newKey {
		return nil
	}
	if oldKey != "" {
		if err := b.Delete(compositeKey(oldKey, member)); err != nil {
			return err
		}
	}
	if newKey != "" {
		return b.Put(compositeKey(newKey, member), []byte{1})
	}
	return nil
}
