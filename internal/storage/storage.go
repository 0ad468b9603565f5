package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/punchclock/internal/view"
)

// ErrNotFound indicates the browser has no live view state.
var ErrNotFound = errors.New("view state not found")

// StateStore keeps one view.State per browser id between requests.
type StateStore interface {
	Load(ctx context.Context, id string) (*view.State, error)
	Save(ctx context.Context, st *view.State) error
	Delete(ctx context.Context, id string) error
}
