//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// IUserRepository keeps the per-user state the engine itself needs: the
// directed block list. Profile and credential management live in the outer
// HTTP layer and are not modeled here.
type IUserRepository interface {
	Save(user User) error
	FindByID(id string) (User, error)
	Block(userID, blockedID string) error
	Unblock(userID, blockedID string) error
	BlockedIDs(userID string) ([]string, error)
}

// User is the repository-level representation of a user identity.
type User struct {
	ID        string
	Username  string
	Blocked   []string
	CreatedAt time.Time
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

type diskUser struct {
	ID       string   `cbor:"id"`
	Username string   `cbor:"username,omitempty"`
	Blocked  []string `cbor:"blocked,omitempty"`
	At       int64    `cbor:"at"`
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

func (u UserRepository) Save(user User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	data, err := cbor.Marshal(diskUser{
		ID:       user.ID,
		Username: user.Username,
		Blocked:  user.Blocked,
		At:       user.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), data)
	})
}

func (u UserRepository) FindByID(id string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		found, err := readUser(txn, id)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	return user, err
}

// Block adds blockedID to userID's block list. Blocking is directed:
// A blocking B says nothing about B blocking A.
func (u UserRepository) Block(userID, blockedID string) error {
	return u.mutate(userID, func(user *User) {
		for _, id := range user.Blocked {
			if id == blockedID {
				return
			}
		}
		user.Blocked = append(user.Blocked, blockedID)
	})
}

func (u UserRepository) Unblock(userID, blockedID string) error {
	return u.mutate(userID, func(user *User) {
		for i, id := range user.Blocked {
			if id == blockedID {
				user.Blocked = append(user.Blocked[:i], user.Blocked[i+1:]...)
				return
			}
		}
	})
}

// BlockedIDs returns the block list of userID. An unknown user simply has
// an empty list; the engine never requires profile rows to exist.
func (u UserRepository) BlockedIDs(userID string) ([]string, error) {
	var blocked []string
	err := u.db.View(func(txn *badger.Txn) error {
		user, err := readUser(txn, userID)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		blocked = user.Blocked
		return nil
	})
	return blocked, err
}

// mutate upserts: blocking from a user with no stored row creates the row.
func (u UserRepository) mutate(id string, fn func(user *User)) error {
	for {
		err := u.db.Update(func(txn *badger.Txn) error {
			user, err := readUser(txn, id)
			if err == badger.ErrKeyNotFound {
				user = User{ID: id, CreatedAt: time.Now().UTC()}
			} else if err != nil {
				return err
			}
			fn(&user)
			data, err := cbor.Marshal(diskUser{
				ID:       user.ID,
				Username: user.Username,
				Blocked:  user.Blocked,
				At:       user.CreatedAt.UnixNano(),
			})
			if err != nil {
				return fmt.Errorf("marshal failed: %w", err)
			}
			return txn.Set(userKey(id), data)
		})
		if err != badger.ErrConflict {
			return err
		}
	}
}

func readUser(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, err
	}
	var disk diskUser
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &disk)
	}); err != nil {
		return User{}, err
	}
	return User{
		ID:        disk.ID,
		Username:  disk.Username,
		Blocked:   disk.Blocked,
		CreatedAt: time.Unix(0, disk.At).UTC(),
	}, nil
}
