package authority_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/dovault/internal/adapters/authority"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAllowlist(t *testing.T) {
	ctx := context.Background()
	a := authority.NewAllowlist(map[string][]domain.Action{
		"admin":  {authority.Any},
		"keeper": {domain.ActionActivate, domain.ActionSettle},
	})

	assert.NoError(t, a.Authorize(ctx, "admin", domain.ActionSuspend))
	assert.NoError(t, a.Authorize(ctx, "keeper", domain.ActionSettle))
	assert.ErrorIs(t, a.Authorize(ctx, "keeper", domain.ActionUpdateConfig), domain.ErrUnauthorized)
	assert.ErrorIs(t, a.Authorize(ctx, "stranger", domain.ActionActivate), domain.ErrUnauthorized)

	a.Grant("keeper", domain.ActionUpdateConfig)
	assert.NoError(t, a.Authorize(ctx, "keeper", domain.ActionUpdateConfig))

	a.Revoke("keeper")
	assert.ErrorIs(t, a.Authorize(ctx, "keeper", domain.ActionSettle), domain.ErrUnauthorized)
}
