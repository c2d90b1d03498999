package ports

import (
	"context"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// EventSink receives the structured event of every successful call.
type EventSink interface {
	Emit(ctx context.Context, e domain.Event) error
}

// Authority decides whether caller may invoke action.
type Authority interface {
	Authorize(ctx context.Context, caller string, action domain.Action) error
}
