package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Block_Is_Directed_And_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// Blocking from a user with no stored row upserts the row
	req.NoError(repository.Block("alice", "bob"))
	req.NoError(repository.Block("alice", "bob"))

	blocked, err := repository.BlockedIDs("alice")
	req.NoError(err)
	req.Equal([]string{"bob"}, blocked)

	// The other direction is untouched
	blocked, err = repository.BlockedIDs("bob")
	req.NoError(err)
	req.Empty(blocked)
}

func Test_Unblock_Removes_Entry(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	req.NoError(repository.Block("alice", "bob"))
	req.NoError(repository.Block("alice", "carol"))
	req.NoError(repository.Unblock("alice", "bob"))

	blocked, err := repository.BlockedIDs("alice")
	req.NoError(err)
	req.Equal([]string{"carol"}, blocked)

	// Unblocking an entry that does not exist is a no-op
	req.NoError(repository.Unblock("alice", "dave"))
}

func Test_BlockedIDs_Unknown_User_Is_Empty(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	blocked, err := repository.BlockedIDs("ghost")
	req.NoError(err)
	req.Empty(blocked)
}

func Test_Save_And_FindByID(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	req.NoError(repository.Save(User{ID: "alice", Username: "Alice"}))

	user, err := repository.FindByID("alice")
	req.NoError(err)
	req.Equal("Alice", user.Username)
	req.False(user.CreatedAt.IsZero())
}
