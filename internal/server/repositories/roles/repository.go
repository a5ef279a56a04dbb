// Package roles stores the role catalogue referenced by users.
package roles

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)

	// Ensure returns the named role, creating it when missing.
	Ensure(ctx context.Context, name, description string) (*models.Role, error)
}
