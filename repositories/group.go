//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"chatter/domain"
	"chatter/errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// IGroupRepository stores group membership. The router reads membership at
// delivery time, so adds and removals take effect on the very next fan-out.
type IGroupRepository interface {
	Create(name string, members []string) (domain.Group, error)
	FindByID(id string) (domain.Group, error)
	Members(id string) ([]string, error)
	AddMember(id, userID string) error
	RemoveMember(id, userID string) error
	ListForUser(userID string) ([]domain.Group, error)
}

type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) GroupRepository {
	return GroupRepository{db: db}
}

type diskGroup struct {
	ID      string   `cbor:"id"`
	Name    string   `cbor:"name"`
	Members []string `cbor:"members"`
	Picture string   `cbor:"picture,omitempty"`
	At      int64    `cbor:"at"`
}

func groupKey(id string) []byte {
	return []byte("group:" + id)
}

func (g GroupRepository) Create(name string, members []string) (domain.Group, error) {
	group := domain.Group{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   append([]string(nil), members...),
		CreatedAt: time.Now().UTC(),
	}
	data, err := cbor.Marshal(toDiskGroup(group))
	if err != nil {
		return domain.Group{}, fmt.Errorf("marshal failed: %w", err)
	}
	err = g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupKey(group.ID), data)
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (g GroupRepository) FindByID(id string) (domain.Group, error) {
	var group domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		found, err := readGroup(txn, id)
		if err != nil {
			return err
		}
		group = found
		return nil
	})
	return group, err
}

func (g GroupRepository) Members(id string) ([]string, error) {
	group, err := g.FindByID(id)
	if err != nil {
		return nil, err
	}
	return group.Members, nil
}

// AddMember is an add-to-set: adding an existing member is a no-op.
func (g GroupRepository) AddMember(id, userID string) error {
	return g.mutate(id, func(group *domain.Group) {
		if !group.HasMember(userID) {
			group.Members = append(group.Members, userID)
		}
	})
}

// RemoveMember pulls userID out of the member set. The removed member stops
// receiving new group messages immediately.
func (g GroupRepository) RemoveMember(id, userID string) error {
	return g.mutate(id, func(group *domain.Group) {
		for i, member := range group.Members {
			if member == userID {
				group.Members = append(group.Members[:i], group.Members[i+1:]...)
				return
			}
		}
	})
}

// ListForUser scans all groups and keeps those the user belongs to.
func (g GroupRepository) ListForUser(userID string) ([]domain.Group, error) {
	var groups []domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := []byte("group:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskGroup
			if err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			group := toGroup(disk)
			if group.HasMember(userID) {
				groups = append(groups, group)
			}
		}
		return nil
	})
	return groups, err
}

func (g GroupRepository) mutate(id string, fn func(group *domain.Group)) error {
	for {
		err := g.db.Update(func(txn *badger.Txn) error {
			group, err := readGroup(txn, id)
			if err != nil {
				return err
			}
			fn(&group)
			data, err := cbor.Marshal(toDiskGroup(group))
			if err != nil {
				return fmt.Errorf("marshal failed: %w", err)
			}
			return txn.Set(groupKey(id), data)
		})
		if err != badger.ErrConflict {
			return err
		}
	}
}

func readGroup(txn *badger.Txn, id string) (domain.Group, error) {
	item, err := txn.Get(groupKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Group{}, errors.ErrGroupNotFound
	}
	if err != nil {
		return domain.Group{}, err
	}
	var disk diskGroup
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &disk)
	}); err != nil {
		return domain.Group{}, err
	}
	return toGroup(disk), nil
}

func toDiskGroup(group domain.Group) diskGroup {
	return diskGroup{
		ID:      group.ID,
		Name:    group.Name,
		Members: group.Members,
		Picture: group.Picture,
		At:      group.CreatedAt.UnixNano(),
	}
}

func toGroup(disk diskGroup) domain.Group {
	return domain.Group{
		ID:        disk.ID,
		Name:      disk.Name,
		Members:   disk.Members,
		Picture:   disk.Picture,
		CreatedAt: time.Unix(0, disk.At).UTC(),
	}
}
