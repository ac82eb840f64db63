package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for user data access
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// ListActive returns every active account, used by the batch pricing worker.
	ListActive(ctx context.Context) ([]*User, error)
}
