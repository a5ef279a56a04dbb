package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	rolesrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/roles"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var (
	keyOnce sync.Once
	keyPair *keys.KeyPair
)

func testKeyPair(t *testing.T) *keys.KeyPair {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		if keyPair, _, err = keys.GenerateKeyPair(2048); err != nil {
			panic(err)
		}
	})
	return keyPair
}

func testHasher() cryptox.PasswordHasher {
	return cryptox.NewBcryptHasher(bcrypt.MinCost)
}

// memStore backs all fake repositories. Writes ignore transactions; tests
// that care about rollback assert on the sqlmock expectations instead.
type memStore struct {
	mu sync.Mutex

	users  map[string]*models.User
	roles  map[int64]*models.Role
	tokens map[string]*models.RefreshToken
	nextID int64

	getUserErr     error
	getRoleErr     error
	createTokenErr error
	findTokenErr   error
	revokeErr      error
	conflicts      int
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		roles:  map[int64]*models.Role{},
		tokens: map[string]*models.RefreshToken{},
		nextID: 100,
	}
}

func (s *memStore) addRole(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[id] = &models.Role{ID: id, Name: name}
}

func (s *memStore) addUser(t *testing.T, id int64, name, password string, roleID int64) *models.User {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, UserName: name, PasswordHash: hash, RoleID: roleID}
	s.users[name] = u
	return u
}

func (s *memStore) tokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	f.s.nextID++
	cp := *u
	cp.ID = f.s.nextID
	f.s.users[u.UserName] = &cp
	return &cp, nil
}

func (f fakeUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.getUserErr != nil {
		return nil, f.s.getUserErr
	}
	u, ok := f.s.users[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.getUserErr != nil {
		return nil, f.s.getUserErr
	}
	for _, u := range f.s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeRoles struct{ s *memStore }

func (f fakeRoles) GetByID(_ context.Context, id int64) (*models.Role, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.getRoleErr != nil {
		return nil, f.s.getRoleErr
	}
	r, ok := f.s.roles[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeRoles) GetByName(_ context.Context, name string) (*models.Role, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeRoles) Ensure(_ context.Context, name, description string) (*models.Role, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	id := int64(len(f.s.roles) + 1)
	f.s.roles[id] = &models.Role{ID: id, Name: name, Description: description}
	return &models.Role{ID: id, Name: name, Description: description}, nil
}

type fakeTokens struct{ s *memStore }

func (f fakeTokens) Create(_ context.Context, userID int64, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createTokenErr != nil {
		return nil, f.s.createTokenErr
	}
	if f.s.conflicts > 0 {
		f.s.conflicts--
		return nil, common.ErrTokenConflict
	}
	if _, ok := f.s.tokens[token]; ok {
		return nil, common.ErrTokenConflict
	}
	rt := &models.RefreshToken{ID: token[:8], UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	f.s.tokens[token] = rt
	cp := *rt
	return &cp, nil
}

func (f fakeTokens) FindByValue(_ context.Context, token string) (*models.RefreshToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.findTokenErr != nil {
		return nil, f.s.findTokenErr
	}
	rt, ok := f.s.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rt
	return &cp, nil
}

func (f fakeTokens) Revoke(_ context.Context, token string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.revokeErr != nil {
		return false, f.s.revokeErr
	}
	rt, ok := f.s.tokens[token]
	if !ok {
		return false, nil
	}
	rt.Revoked = true
	return true, nil
}

func (f fakeTokens) RevokeAllByUser(_ context.Context, userID int64) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, rt := range f.s.tokens {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			n++
		}
	}
	return n, nil
}

func (f fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for k, rt := range f.s.tokens {
		if rt.ExpiresAt.Before(before) {
			delete(f.s.tokens, k)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error          { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return fakeUsers{m.s} }
func (m *fakeRepoManager) Roles(dbx.DBTX) rolesrepo.Repository                 { return fakeRoles{m.s} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return fakeTokens{m.s} }

type recordingPublisher struct {
	mu      sync.Mutex
	created []events.UserCreatedEvent
}

func (p *recordingPublisher) PublishStatus(context.Context, string) {}
func (p *recordingPublisher) PublishUserCreated(_ context.Context, ev events.UserCreatedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, ev)
}
