// Package services contains server-side business logic. CredentialService
// turns usernames and passwords into token pairs, exchanges refresh tokens for
// access tokens and revokes refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const (
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// maxIssueAttempts bounds regeneration after a refresh token collision.
	maxIssueAttempts = 3
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// CredentialServiceDeps wires a CredentialService. Publisher, Metrics and
// Logger may be nil.
type CredentialServiceDeps struct {
	DB        *sql.DB
	Repos     repomanager.RepositoryManager
	Codec     *auth.Codec
	Keys      *keys.KeyPair
	Hasher    cryptox.PasswordHasher
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    logging.Logger

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CredentialService is safe for concurrent use. It holds no mutable state
// besides the lazily computed dummy hash.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	keys        *keys.KeyPair
	hasher      cryptox.PasswordHasher
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      logging.Logger

	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialService(d CredentialServiceDeps) *CredentialService {
	s := &CredentialService{
		db:              d.DB,
		repomanager:     d.Repos,
		codec:           d.Codec,
		keys:            d.Keys,
		hasher:          d.Hasher,
		publisher:       d.Publisher,
		metrics:         d.Metrics,
		logger:          d.Logger,
		accessTokenTTL:  d.AccessTokenTTL,
		refreshTokenTTL: d.RefreshTokenTTL,
		now:             time.Now,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.With("module", "credentials")
	if s.accessTokenTTL <= 0 {
		s.accessTokenTTL = auth.DefaultAccessTTL
	}
	if s.refreshTokenTTL <= 0 {
		s.refreshTokenTTL = DefaultRefreshTokenTTL
	}
	return s
}

// Login verifies the password and issues a token pair. Unknown users and wrong
// passwords both yield common.ErrInvalidCredentials. The user, role and new
// refresh record are read and written in one transaction, and tokens are
// returned only after it commits.
func (s *CredentialService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	var pair *TokenPair

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	err := dbx.WithTx(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetUserByLogin(ctx, username)
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyPasswordHash())
			return common.ErrInvalidCredentials
		}
		if err != nil {
			return fmt.Errorf("error getting user: %w", err)
		}
		if !s.hasher.Verify(password, user.PasswordHash) {
			return common.ErrInvalidCredentials
		}

		role, err := s.repomanager.Roles(tx).GetByID(ctx, user.RoleID)
		if err != nil {
			return fmt.Errorf("error getting role: %w", err)
		}

		pair, err = s.issueTokenPair(ctx, tx, user, role.Name)
		return err
	})

	switch {
	case err == nil:
		s.metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()
		s.logger.Info(ctx, "login succeeded", "username", username)
		return pair, nil
	case errors.Is(err, common.ErrInvalidCredentials):
		s.metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
		s.logger.Info(ctx, "login rejected", "username", username)
		return nil, common.ErrInvalidCredentials
	default:
		s.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error(ctx, "login failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}
}

// Refresh exchanges a valid refresh token for a new access token carrying the
// user's current role. The refresh token itself is not rotated. Unknown,
// revoked and expired tokens are indistinguishable to the caller.
func (s *CredentialService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	fp := auth.Fingerprint(refreshToken)

	rec, err := s.repomanager.RefreshTokens(s.db).FindByValue(ctx, refreshToken)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", s.refreshFailed(ctx, fp, err)
	}
	if !rec.IsValid(s.now()) {
		s.metrics.Refreshes.WithLabelValues(metrics.ResultFailure).Inc()
		s.logger.Info(ctx, "refresh rejected", "reason", rejectReason(rec), "token", fp)
		return "", common.ErrInvalidOrExpiredRefreshToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, rec.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		s.metrics.Refreshes.WithLabelValues(metrics.ResultFailure).Inc()
		s.logger.Warn(ctx, "refresh rejected", "reason", "user_gone", "token", fp)
		return "", common.ErrInvalidOrExpiredRefreshToken
	}
	if err != nil {
		return "", s.refreshFailed(ctx, fp, err)
	}

	role, err := s.repomanager.Roles(s.db).GetByID(ctx, user.RoleID)
	if err != nil {
		return "", s.refreshFailed(ctx, fp, err)
	}

	access, err := s.codec.Encode(user.UserName, user.ID, role.Name, s.accessTokenTTL)
	if err != nil {
		return "", s.refreshFailed(ctx, fp, err)
	}

	s.metrics.Refreshes.WithLabelValues(metrics.ResultSuccess).Inc()
	return access, nil
}

func (s *CredentialService) refreshFailed(ctx context.Context, fp string, err error) error {
	s.metrics.Refreshes.WithLabelValues(metrics.ResultError).Inc()
	s.logger.Error(ctx, "refresh failed", "token", fp, "error", err)
	return common.ErrorInternal
}

func rejectReason(rec *models.RefreshToken) string {
	switch {
	case rec == nil:
		return "not_found"
	case rec.Revoked:
		return "revoked"
	default:
		return "expired"
	}
}

// Logout revokes the refresh token. Unknown and already revoked tokens are
// not an error.
func (s *CredentialService) Logout(ctx context.Context, refreshToken string) error {
	fp := auth.Fingerprint(refreshToken)

	found, err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken)
	if err != nil {
		s.logger.Error(ctx, "logout failed", "token", fp, "error", err)
		return common.ErrorInternal
	}

	s.metrics.Logouts.Inc()
	if !found {
		s.logger.Debug(ctx, "logout of unknown token", "token", fp)
	}
	return nil
}

// Authenticate verifies an access token. The returned error wraps one of the
// common.ErrToken* sentinels; each rejection is logged and counted by kind.
func (s *CredentialService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		kind := common.TokenErrorKind(err)
		s.metrics.TokenRejections.WithLabelValues(kind).Inc()
		s.logger.Info(ctx, "access token rejected", "kind", kind, "token", auth.Fingerprint(accessToken))
		return nil, err
	}
	return claims, nil
}

// RegisterUser creates a user. Only administrators may call it.
func (s *CredentialService) RegisterUser(ctx context.Context, caller *auth.Claims, username, password string, roleID int64) (*models.User, error) {
	if caller == nil {
		return nil, common.ErrorUnauthorized
	}
	if !caller.IsAdmin() {
		s.logger.Warn(ctx, "registration denied", "caller", caller.Subject)
		return nil, common.ErrorForbidden
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorInvalidArgument)
	}

	if _, err := s.repomanager.Roles(s.db).GetByID(ctx, roleID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown role %d", common.ErrorInvalidArgument, roleID)
		}
		s.logger.Error(ctx, "registration failed", "error", err)
		return nil, common.ErrorInternal
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error(ctx, "hash password", "error", err)
		return nil, common.ErrorInternal
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		UserName:     username,
		PasswordHash: hash,
		RoleID:       roleID,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "create user", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "username", user.UserName, "user_id", user.ID, "by", caller.Subject)
	s.publisher.PublishUserCreated(ctx, events.UserCreatedEvent{
		UserID:   user.ID,
		UserName: user.UserName,
		RoleID:   user.RoleID,
	})
	return user, nil
}

// RevokeAllForUser revokes every active refresh token of a user.
func (s *CredentialService) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).RevokeAllByUser(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "revoke all", "user_id", userID, "error", err)
		return 0, common.ErrorInternal
	}
	s.logger.Info(ctx, "refresh tokens revoked", "user_id", userID, "count", n)
	return n, nil
}

// CleanupExpired deletes refresh token records that have already expired.
func (s *CredentialService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	s.metrics.ExpiredDeleted.Add(float64(n))
	if n > 0 {
		s.logger.Info(ctx, "expired refresh tokens deleted", "count", n)
	}
	return n, nil
}

// PublicKeyPEM returns the verification key for external verifiers.
func (s *CredentialService) PublicKeyPEM() []byte {
	return append([]byte(nil), s.keys.PublicPEM...)
}

// KeyFingerprint identifies the verification key.
func (s *CredentialService) KeyFingerprint() string {
	return s.keys.Fingerprint
}

// --- helpers below ---

func (s *CredentialService) issueTokenPair(ctx context.Context, tx dbx.DBTX, user *models.User, role string) (*TokenPair, error) {
	access, err := s.codec.Encode(user.UserName, user.ID, role, s.accessTokenTTL)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.RefreshTokens(tx)
	for attempt := 1; ; attempt++ {
		refresh, err := auth.GenerateOpaqueToken()
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}

		_, err = repo.Create(ctx, user.ID, refresh, s.now().Add(s.refreshTokenTTL))
		if err == nil {
			return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: common.TokenTypeBearer}, nil
		}
		if !errors.Is(err, common.ErrTokenConflict) {
			return nil, fmt.Errorf("error creating refresh token: %w", err)
		}

		s.metrics.TokenConflicts.Inc()
		s.logger.Error(ctx, "refresh token value collision, check the entropy source", "attempt", attempt)
		if attempt == maxIssueAttempts {
			return nil, err
		}
	}
}

// dummyPasswordHash gives unknown-user logins a real hash to compare against,
// so they cost as much as a wrong password.
func (s *CredentialService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		plain, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		if h, err := s.hasher.Hash(plain); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
