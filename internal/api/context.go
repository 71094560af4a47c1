package api

import (
	"context"

	"github.com/npezzotti/gossip/internal/types"
)

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func User(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(userKey).(types.User)
	return user, ok
}

func UserId(ctx context.Context) (int, bool) {
	user, ok := User(ctx)
	return user.Id, ok
}
