package authority

import (
	"context"
	"fmt"
	"sync"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Any grants every action.
const Any domain.Action = "*"

// Allowlist maps callers to the actions they may invoke.
type Allowlist struct {
	mu     sync.RWMutex
	grants map[string]map[domain.Action]struct{}
}

// NewAllowlist builds an allowlist from caller -> actions.
func NewAllowlist(grants map[string][]domain.Action) *Allowlist {
	a := &Allowlist{grants: make(map[string]map[domain.Action]struct{}, len(grants))}
	for caller, actions := range grants {
		a.Grant(caller, actions...)
	}
	return a
}

// Grant lets caller invoke actions.
func (a *Allowlist) Grant(caller string, actions ...domain.Action) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set := a.grants[caller]
	if set == nil {
		set = make(map[domain.Action]struct{}, len(actions))
		a.grants[caller] = set
	}
	for _, act := range actions {
		set[act] = struct{}{}
	}
}

// Revoke removes every grant of caller.
func (a *Allowlist) Revoke(caller string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants, caller)
}

// Authorize implements ports.Authority.
func (a *Allowlist) Authorize(_ context.Context, caller string, action domain.Action) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	set := a.grants[caller]
	if _, ok := set[Any]; ok {
		return nil
	}
	if _, ok := set[action]; ok {
		return nil
	}
	return fmt.Errorf("authority.Authorize: %q may not %s: %w", caller, action, domain.ErrUnauthorized)
}
