package users_test

import (
	"context"
	"database/sql"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements users.Users. The embedded interface covers the
// repository methods the lifecycle never touches.
type MockUsers struct {
	users.Users
	mock.Mock
}

func userResult(args mock.Arguments) (*users.User, error) {
	var record *users.User
	if v := args.Get(0); v != nil {
		record = v.(*users.User)
	}
	return record, args.Error(1)
}

func (m *MockUsers) FindActiveByEmail(ctx context.Context, email string) (*users.User, error) {
	return userResult(m.Called(ctx, email))
}

func (m *MockUsers) FindActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*users.User, error) {
	return userResult(m.Called(ctx, tx, email))
}

func (m *MockUsers) FindByEmailAnyState(ctx context.Context, email string) (*users.User, error) {
	return userResult(m.Called(ctx, email))
}

func (m *MockUsers) FindByEmailAnyStateTx(ctx context.Context, tx bun.IDB, email string) (*users.User, error) {
	return userResult(m.Called(ctx, tx, email))
}

func (m *MockUsers) FindByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*users.User, error) {
	return userResult(m.Called(ctx, id, includeDeleted))
}

func (m *MockUsers) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, includeDeleted bool) (*users.User, error) {
	return userResult(m.Called(ctx, tx, id, includeDeleted))
}

func (m *MockUsers) ListActive(ctx context.Context) ([]*users.User, error) {
	args := m.Called(ctx)
	var records []*users.User
	if v := args.Get(0); v != nil {
		records = v.([]*users.User)
	}
	return records, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *users.User, criteria ...repository.InsertCriteria) (*users.User, error) {
	return userResult(m.Called(ctx, tx, record))
}

func (m *MockUsers) SaveTx(ctx context.Context, tx bun.IDB, record *users.User) (*users.User, error) {
	return userResult(m.Called(ctx, tx, record))
}

func (m *MockUsers) SoftDeleteTx(ctx context.Context, tx bun.IDB, record *users.User) error {
	return m.Called(ctx, tx, record).Error(0)
}

func (m *MockUsers) RestoreTx(ctx context.Context, tx bun.IDB, record *users.User) error {
	return m.Called(ctx, tx, record).Error(0)
}

func (m *MockUsers) PurgeTx(ctx context.Context, tx bun.IDB, record *users.User) error {
	return m.Called(ctx, tx, record).Error(0)
}

// stubRepositoryManager runs transaction bodies directly against the mock,
// no database involved.
type stubRepositoryManager struct {
	users users.Users
}

func (s *stubRepositoryManager) Users() users.Users              { return s.users }
func (s *stubRepositoryManager) ActivityLog() *users.ActivityLog { return nil }
func (s *stubRepositoryManager) Validate() error                 { return nil }
func (s *stubRepositoryManager) MustValidate()                   {}

func (s *stubRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

// blockingRepositoryManager parks every transaction until the context
// deadline fires.
type blockingRepositoryManager struct {
	stubRepositoryManager
}

func (s *blockingRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// MockTokenService implements users.TokenService.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(identity users.Identity) (string, error) {
	args := m.Called(identity)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) IssueWithTTL(identity users.Identity, ttl time.Duration) (string, error) {
	args := m.Called(identity, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (*users.Claims, error) {
	args := m.Called(tokenString)
	var claims *users.Claims
	if v := args.Get(0); v != nil {
		claims = v.(*users.Claims)
	}
	return claims, args.Error(1)
}

// TestIdentity is a plain Identity implementation for token tests.
type TestIdentity struct {
	id       string
	username string
	email    string
}

func (i TestIdentity) ID() string       { return i.id }
func (i TestIdentity) Username() string { return i.username }
func (i TestIdentity) Email() string    { return i.email }

// capturingSink collects activity events in memory.
type capturingSink struct {
	events []users.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt users.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}
