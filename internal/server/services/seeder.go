package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// seedRetries covers replicas racing to create the admin: the loser's
// transaction aborts on the unique constraint and the retry finds the row.
var seedRetries uint64 = 3

var seedRoles = []models.Role{
	{Name: models.RoleAdmin, Description: "Administrator"},
	{Name: models.RoleUser, Description: "Regular user"},
}

// Seeder makes sure the built-in roles and the bootstrap administrator exist.
// It is idempotent and safe to run from every replica at startup.
type Seeder struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	hasher        cryptox.PasswordHasher
	logger        logging.Logger
	adminUserName string
	adminPassword string
}

func NewSeeder(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher, adminUserName, adminPassword string, logger logging.Logger) *Seeder {
	return &Seeder{
		db:            db,
		repomanager:   m,
		hasher:        hasher,
		logger:        logger.With("module", "seeder"),
		adminUserName: adminUserName,
		adminPassword: adminPassword,
	}
}

func (s *Seeder) Seed(ctx context.Context) error {
	backoff := retry.WithMaxRetries(seedRetries, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.seedOnce(ctx); err != nil {
			s.logger.Warn(ctx, "seed attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *Seeder) seedOnce(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		roles := s.repomanager.Roles(tx)

		var adminRole *models.Role
		for _, r := range seedRoles {
			role, err := roles.Ensure(ctx, r.Name, r.Description)
			if err != nil {
				return fmt.Errorf("ensure role %s: %w", r.Name, err)
			}
			if role.Name == models.RoleAdmin {
				adminRole = role
			}
		}

		if s.adminUserName == "" {
			return nil
		}

		users := s.repomanager.Users(tx)
		_, err := users.GetUserByLogin(ctx, s.adminUserName)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("lookup admin: %w", err)
		}

		hash, err := s.hasher.Hash(s.adminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		if _, err := users.Create(ctx, &models.User{
			UserName:     s.adminUserName,
			PasswordHash: hash,
			RoleID:       adminRole.ID,
		}); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}

		s.logger.Info(ctx, "bootstrap admin created", "username", s.adminUserName)
		return nil
	})
}
