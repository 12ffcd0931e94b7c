// Package identity переносит действующего пользователя через context.
// Сессиями и аутентификацией занимается внешний провайдер.
package identity

import (
	"context"

	"compras/models"
)

type ctxKey struct{}

func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext возвращает пользователя из контекста.
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// HasRole проверяет, что роль пользователя входит в список разрешённых.
func HasRole(u models.User, allowed ...models.Role) bool {
	for _, r := range allowed {
		if u.Role == r {
			return true
		}
	}
	return false
}
