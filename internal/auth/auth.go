// Package auth binds credentials presented by HTTP and websocket clients to
// user identities.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/types"
)

var ErrUnauthenticated = errors.New("unauthenticated")

const (
	TokenCookieKey = "token"
	tokenQueryKey  = "token"

	userIdClaim = "user-id"
	expClaim    = "exp"
)

// Authenticator resolves a credential to the identity it was issued for.
type Authenticator interface {
	Authenticate(credential string) (types.User, error)
}

type accountFinder interface {
	GetAccountById(userId int) (database.User, error)
}

type TokenAuthenticator struct {
	signingKey []byte
	accounts   accountFinder
	now        func() time.Time
}

func NewTokenAuthenticator(signingKey []byte, accounts accountFinder) *TokenAuthenticator {
	return &TokenAuthenticator{
		signingKey: signingKey,
		accounts:   accounts,
		now:        time.Now,
	}
}

// CreateToken issues a signed session token for userId valid for exp.
func (a *TokenAuthenticator) CreateToken(userId int, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    a.now().Add(exp).Unix(),
	})

	return token.SignedString(a.signingKey)
}

// UserIdFromToken verifies the token signature and expiry and returns the
// user id claim.
func (a *TokenAuthenticator) UserIdFromToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: parse token: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid user id claim", ErrUnauthenticated)
	}

	return int(userId), nil
}

func (a *TokenAuthenticator) Authenticate(credential string) (types.User, error) {
	if credential == "" {
		return types.User{}, fmt.Errorf("%w: missing credential", ErrUnauthenticated)
	}

	userId, err := a.UserIdFromToken(credential)
	if err != nil {
		return types.User{}, err
	}

	account, err := a.accounts.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.User{}, fmt.Errorf("%w: account %d no longer exists", ErrUnauthenticated, userId)
		}
		return types.User{}, fmt.Errorf("get account: %w", err)
	}

	return types.User{
		Id:        account.Id,
		Username:  account.Username,
		Name:      account.Name,
		Bio:       account.Bio,
		Avatar:    account.AvatarUrl,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}, nil
}

// CredentialFromRequest looks for a session token in the cookie, the
// Authorization header and finally the query string.
func CredentialFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieKey); err == nil && c.Value != "" {
		return c.Value
	}

	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	return r.URL.Query().Get(tokenQueryKey)
}
