package auth

import (
	"testing"
	"time"

	"chatter/errors"

	"github.com/stretchr/testify/require"
)

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator("test-secret")

	token, err := authenticator.GenerateToken("alice", "Alice", time.Hour)
	req.NoError(err)

	claims, err := authenticator.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal("Alice", claims.Username)
}

func Test_Expired_Token_Rejected(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator("test-secret")

	token, err := authenticator.GenerateToken("alice", "Alice", -time.Minute)
	req.NoError(err)

	_, err = authenticator.ValidateToken(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func Test_Wrong_Secret_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := NewAuthenticator("one-secret").GenerateToken("alice", "", time.Hour)
	req.NoError(err)

	_, err = NewAuthenticator("other-secret").ValidateToken(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func Test_Token_Without_UserID_Rejected(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator("test-secret")

	token, err := authenticator.GenerateToken("", "ghost", time.Hour)
	req.NoError(err)

	_, err = authenticator.ValidateToken(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func Test_Garbage_Token_Rejected(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator("test-secret")

	_, err := authenticator.ValidateToken("not.a.token")
	req.ErrorIs(err, errors.ErrInvalidToken)
}
