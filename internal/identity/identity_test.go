package identity

import (
	"context"
	"testing"

	"compras/models"

	"github.com/stretchr/testify/require"
)

func TestWithUserRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	ctx := WithUser(context.Background(), models.User{Username: "ana", Role: models.RoleDepartment})
	u, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "ana", u.Username)
}

func TestHasRole(t *testing.T) {
	u := models.User{Role: models.RoleSupplier}
	require.True(t, HasRole(u, models.RoleAdmin, models.RoleSupplier))
	require.False(t, HasRole(u, models.RoleAdmin))
	require.False(t, HasRole(u))
}
