package cart

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/junaidrashid-git/storefront-core/models"
)

var linesKey = []byte("cart:lines")

// GuestStore is the local persistent cart used while nobody is signed in.
// Every mutation rewrites the full serialized cart, so a reloaded process
// reconstructs it exactly.
type GuestStore struct {
	db *badger.DB
}

// OpenGuestStore opens the on-disk store at dir.
func OpenGuestStore(dir string) (*GuestStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &GuestStore{db: db}, nil
}

// OpenGuestStoreInMemory opens a store that keeps nothing on disk. Tests
// use it; the guest persistence round-trip is exercised on the same codec.
func OpenGuestStoreInMemory() (*GuestStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &GuestStore{db: db}, nil
}

func (g *GuestStore) Load() ([]models.CartLine, error) {
	var lines []models.CartLine
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(linesKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &lines)
		})
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (g *GuestStore) Save(lines []models.CartLine) error {
	buf, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(linesKey, buf)
	})
}

// Reset drops the stored cart. Called after a sign-in merge and on
// sign-out, when a fresh empty guest cart begins.
func (g *GuestStore) Reset() error {
	return g.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(linesKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (g *GuestStore) Close() error {
	return g.db.Close()
}
