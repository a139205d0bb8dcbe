package boltstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	bbolt "go.etcd.io/bbolt"

	"github.com/adamdray/gaia-mud/pkg/accounts"
)

// AccountStore is the bbolt-backed accounts collection, indexed on login ID
// and on role.
type AccountStore struct {
	bolt *bbolt.DB
}

// OpenAccounts opens or creates the accounts database file.
func OpenAccounts(path string) (*AccountStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, idxLogin, idxRole} {
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
	return &AccountStore{bolt: db}, nil
}

// Close implements accounts.Store.
func (s *AccountStore) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// accountDoc wraps the account with its revision counter.
type accountDoc struct {
	Rev     uint64            `json:"rev"`
	Account *accounts.Account `json:"account"`
}

func loginKey(loginID string) []byte { return []byte(strings.ToLower(loginID)) }

// Get implements accounts.Store.
func (s *AccountStore) Get(id string) (*accounts.Account, error) {
	var out *accounts.Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get([]byte(id))
		if data == nil {
			return accounts.ErrNotFound
		}
		var doc accountDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("boltstore: decode account %s: %w", id, err)
		}
		doc.Account.Rev = strconv.FormatUint(doc.Rev, 10)
		out = doc.Account
		return nil
	})
	return out, err
}

// GetByLogin implements accounts.Store via the login index.
func (s *AccountStore) GetByLogin(loginID string) (*accounts.Account, error) {
	var id string
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(idxLogin).Get(loginKey(loginID))
		if v == nil {
			return accounts.ErrNotFound
		}
		id = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Put implements accounts.Store with optimistic-revision checks.
func (s *AccountStore) Put(a *accounts.Account, priorRev string) (string, error) {
	prior, err := parseRev(priorRev)
	if err != nil {
		return "", fmt.Errorf("boltstore: bad revision %q: %w", priorRev, err)
	}

	var newRev uint64
	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		key := []byte(a.ID)

		var curRev uint64
		var prevRoles []string
		var prevLogin string
		if data := b.Get(key); data != nil {
			var doc accountDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("boltstore: decode account %s: %w", a.ID, err)
			}
			curRev = doc.Rev
			prevRoles = doc.Account.Roles
			prevLogin = doc.Account.LoginID
			if prior != curRev {
				return accounts.ErrConflict
			}
		} else if prior != 0 {
			return accounts.ErrConflict
		}

		newRev = curRev + 1
		data, merr := json.Marshal(accountDoc{Rev: newRev, Account: a})
		if merr != nil {
			return fmt.Errorf("boltstore: encode account %s: %w", a.ID, merr)
		}
		if err := b.Put(key, data); err != nil {
			return err
		}

		// Login index.
		logins := tx.Bucket(idxLogin)
		if prevLogin != "" && !strings.EqualFold(prevLogin, a.LoginID) {
			if err := logins.Delete(loginKey(prevLogin)); err != nil {
				return err
			}
		}
		if err := logins.Put(loginKey(a.LoginID), key); err != nil {
			return err
		}

		// Role index.
		roles := tx.Bucket(idxRole)
		for _, r := range prevRoles {
			if err := roles.Delete(compositeKey(r, a.ID)); err != nil {
				return err
			}
		}
		for _, r := range a.Roles {
			if err := roles.Put(compositeKey(r, a.ID), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(newRev, 10), nil
}

// Delete implements accounts.Store.
func (s *AccountStore) Delete(id, priorRev string) error {
	prior, err := parseRev(priorRev)
	if err != nil {
		return fmt.Errorf("boltstore: bad revision %q: %w", priorRev, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		data := b.Get([]byte(id))
		if data == nil {
			return accounts.ErrNotFound
		}
		var doc accountDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("boltstore: decode account %s: %w", id, err)
		}
		if prior != 0 && prior != doc.Rev {
			return accounts.ErrConflict
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(idxLogin).Delete(loginKey(doc.Account.LoginID)); err != nil {
			return err
		}
		roles := tx.Bucket(idxRole)
		for _, r := range doc.Account.Roles {
			if err := roles.Delete(compositeKey(r, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByRole implements accounts.Store via the role index.
func (s *AccountStore) ListByRole(role string) ([]string, error) {
	var ids []string
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(idxRole).Cursor()
		prefix := compositeKey(role, "")
		for k, _ := c.Seek(prefix); k != nil; k, _ = c.Next() {
			member := splitComposite(k, role)
			if member == "" {
				break
			}
			ids = append(ids, member)
		}
		return nil
	})
	return ids, err
}
