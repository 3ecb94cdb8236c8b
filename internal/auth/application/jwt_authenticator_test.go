package application

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/retailops/internal/auth/domain"
	userdomain "github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

type stubUsers struct {
	userdomain.UserRepository
	users map[uint]*userdomain.User
}

func (s stubUsers) Get(_ context.Context, id uint) (*userdomain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, userdomain.ErrUserNotFound
}

func newAuthenticator() *JWTAuthenticator {
	users := stubUsers{users: map[uint]*userdomain.User{
		7: {ID: 7, Username: "vendedor1", Role: userdomain.RoleSeller},
	}}
	return NewJWTAuthenticator("secret", "retail", users)
}

func TestAuthenticateValidToken(t *testing.T) {
	a := newAuthenticator()
	token, err := a.Sign(7, time.Hour)
	require.NoError(t, err)

	p, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), p.UserID)
	assert.Equal(t, userdomain.RoleSeller, p.Role)
	assert.True(t, p.CanManageOrders())
	assert.False(t, p.CanRecordMovements())
}

func TestAuthenticateRejects(t *testing.T) {
	a := newAuthenticator()
	ctx := context.Background()

	expired, err := a.Sign(7, -time.Minute)
	require.NoError(t, err)

	unknownUser, err := a.Sign(99, time.Hour)
	require.NoError(t, err)

	other := NewJWTAuthenticator("other-secret", "retail", stubUsers{})
	forged, err := other.Sign(7, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-jwt",
		"expired":  expired,
		"unknown":  unknownUser,
		"forged":   forged,
		"alg none": unsigned,
	} {
		_, err := a.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, domain.ErrInvalidToken, name)
		assert.Equal(t, errorx.KindUnauthenticated, errorx.KindOf(err), name)
	}
}
