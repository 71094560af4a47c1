package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/stretchr/testify/assert"
)

var testKey = []byte("test-signing-key")

func TestTokenAuthenticator_Authenticate(t *testing.T) {
	db := &database.MockRepository{}
	a := NewTokenAuthenticator(testKey, db)

	account := database.User{Id: 1, Username: "alice", Name: "Alice", AvatarUrl: "http://localhost/uploads/a.png"}
	db.On("GetAccountById", 1).Return(account, nil)
	db.On("GetAccountById", 2).Return(database.User{}, database.ErrNotFound)
	db.On("GetAccountById", 3).Return(database.User{}, errors.New("connection refused"))

	validToken := func(id int) string {
		tok, err := a.CreateToken(id, time.Hour)
		assert.NoError(t, err)
		return tok
	}

	expired, err := a.CreateToken(1, -time.Hour)
	assert.NoError(t, err)

	otherKey, err := NewTokenAuthenticator([]byte("other"), db).CreateToken(1, time.Hour)
	assert.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{userIdClaim: 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)

	tcases := []struct {
		name       string
		credential string
		unauth     bool
		err        bool
	}{
		{name: "valid token", credential: validToken(1)},
		{name: "empty credential", credential: "", unauth: true, err: true},
		{name: "garbage", credential: "not-a-token", unauth: true, err: true},
		{name: "expired", credential: expired, unauth: true, err: true},
		{name: "wrong key", credential: otherKey, unauth: true, err: true},
		{name: "none algorithm", credential: noneAlg, unauth: true, err: true},
		{name: "deleted account", credential: validToken(2), unauth: true, err: true},
		{name: "store failure", credential: validToken(3), err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := a.Authenticate(tc.credential)
			if !tc.err {
				assert.NoError(t, err)
				assert.Equal(t, 1, user.Id)
				assert.Equal(t, "Alice", user.Name)
				assert.Equal(t, account.AvatarUrl, user.Avatar, "expected avatar url to be bound")
				return
			}

			assert.Error(t, err)
			assert.Equal(t, tc.unauth, errors.Is(err, ErrUnauthenticated))
		})
	}
}

func TestCredentialFromRequest(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
		r.AddCookie(&http.Cookie{Name: TokenCookieKey, Value: "cookie"})
		r.Header.Set("Authorization", "Bearer header")
		assert.Equal(t, "cookie", CredentialFromRequest(r), "expected cookie to take precedence")
	})

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
		r.Header.Set("Authorization", "Bearer header")
		assert.Equal(t, "header", CredentialFromRequest(r))
	})

	t.Run("query", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
		r.Header.Set("Authorization", "Basic abc")
		assert.Equal(t, "query", CredentialFromRequest(r))
	})

	t.Run("none", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		assert.Empty(t, CredentialFromRequest(r))
	})
}
