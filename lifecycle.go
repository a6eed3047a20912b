package users

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Lifecycle orchestrates the user state machine: register, login, update,
// soft delete, restore, and purge. Every mutating operation follows
// load -> validate -> mutate -> persist, and runs under the configured
// per-operation deadline.
type Lifecycle struct {
	repo    RepositoryManager
	hasher  *Hasher
	tokens  TokenService
	logger  Logger
	sink    ActivitySink
	timeout time.Duration
}

// LifecycleOption customizes a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLifecycleLogger overrides the service logger.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(s *Lifecycle) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLifecycleActivitySink configures the audit sink for lifecycle events.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(s *Lifecycle) {
		s.sink = normalizeActivitySink(sink)
	}
}

// NewLifecycle builds the lifecycle service from its collaborators.
func NewLifecycle(repo RepositoryManager, hasher *Hasher, tokens TokenService, cfg Config, opts ...LifecycleOption) *Lifecycle {
	s := &Lifecycle{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		logger:  defLogger{},
		sink:    noopActivitySink{},
		timeout: cfg.OperationTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Register validates the input, checks the email against records in every
// state, hashes the password, and persists the new user. Returns the public
// profile; the password hash never leaves the store.
func (s *Lifecycle) Register(ctx context.Context, input RegisterInput) (*Profile, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user := &User{}
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		email := strings.TrimSpace(input.Email)

		existing, err := s.repo.Users().FindByEmailAnyStateTx(ctx, tx, email)
		if err != nil && !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}
		if existing != nil {
			return ErrEmailTaken
		}

		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Username = input.Username
		user.Email = email
		user.PasswordHash = hash
		user.Bio = input.Bio
		user.Avatar = input.Avatar

		if user, err = s.repo.Users().CreateTx(ctx, tx, user); err != nil {
			// the unique index wins races the pre-check cannot see
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		return nil
	})

	if err != nil {
		err = s.finishErr(err)
		s.emit(ctx, ActivityEventRegisterFailure, "", input.Email, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	s.emit(ctx, ActivityEventRegisterSuccess, user.ID.String(), user.Email, nil)

	return user.Profile(), nil
}

// Login verifies the credentials and issues a session token. An unknown
// email and a wrong password fail with the identical error so callers
// cannot probe which factor was wrong.
func (s *Lifecycle) Login(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user, err := s.repo.Users().FindActiveByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.emit(ctx, ActivityEventLoginFailure, "", email, map[string]any{
				"error": ErrInvalidCredentials.Message,
			})
			return "", ErrInvalidCredentials
		}
		if timeoutErr := asTimeout(err); timeoutErr != nil {
			return "", timeoutErr
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), user.Email, map[string]any{
			"error": ErrInvalidCredentials.Message,
		})
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identityFromUser(user))
	if err != nil {
		s.logger.Error("Login failed to issue token", "error", err)
		return "", s.finishErr(err)
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), user.Email, nil)

	return token, nil
}

// Find returns the public profile of an active user.
func (s *Lifecycle) Find(ctx context.Context, id uuid.UUID) (*Profile, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user, err := s.repo.Users().FindByID(ctx, id, false)
	if err != nil {
		return nil, s.lookupErr(err, id)
	}

	return user.Profile(), nil
}

// List returns the public profiles of every active user.
func (s *Lifecycle) List(ctx context.Context) ([]*Profile, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	records, err := s.repo.Users().ListActive(ctx)
	if err != nil {
		if timeoutErr := asTimeout(err); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}

	profiles := make([]*Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, record.Profile())
	}

	return profiles, nil
}

// Update applies a patch to an active user. Changing the email re-checks
// uniqueness against other active records; submitting the current email is
// not a conflict. Password is never touched on this path.
func (s *Lifecycle) Update(ctx context.Context, id uuid.UUID, patch UpdateInput) (*Profile, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user := &User{}
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = s.repo.Users().FindByIDTx(ctx, tx, id, false); err != nil {
			if goerrors.IsNotFound(err) {
				return userNotFound(id)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for update")
		}

		if patch.Email != nil {
			email := strings.TrimSpace(*patch.Email)
			if email != user.Email {
				existing, err := s.repo.Users().FindActiveByEmailTx(ctx, tx, email)
				if err != nil && !goerrors.IsNotFound(err) {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
				}
				if existing != nil && existing.ID != user.ID {
					return ErrEmailTaken
				}
			}
			user.Email = email
		}
		if patch.Username != nil {
			user.Username = strings.TrimSpace(*patch.Username)
		}
		if patch.Bio != nil {
			user.Bio = *patch.Bio
		}
		if patch.Avatar != nil {
			user.Avatar = *patch.Avatar
		}

		if user, err = s.repo.Users().SaveTx(ctx, tx, user); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not persist user update")
		}

		return nil
	})

	if err != nil {
		return nil, s.finishErr(err)
	}

	s.emit(ctx, ActivityEventUserUpdated, user.ID.String(), user.Email, nil)

	return user.Profile(), nil
}

// SoftDelete marks an active user deleted. The record stays durable and can
// be restored or purged later.
func (s *Lifecycle) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user := &User{}
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = s.repo.Users().FindByIDTx(ctx, tx, id, false); err != nil {
			if goerrors.IsNotFound(err) {
				return userNotFound(id)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for delete")
		}

		return s.repo.Users().SoftDeleteTx(ctx, tx, user)
	})

	if err != nil {
		return s.finishErr(err)
	}

	s.emit(ctx, ActivityEventUserSoftDeleted, user.ID.String(), user.Email, nil)

	return nil
}

// Restore returns a soft-deleted user to the active state. Restoring an
// already-active user is a no-op. Before clearing the marker the email is
// re-checked against active records, so a registration that claimed the
// email while the record was deleted blocks the restore with a conflict.
func (s *Lifecycle) Restore(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user := &User{}
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = s.repo.Users().FindByIDTx(ctx, tx, id, true); err != nil {
			if goerrors.IsNotFound(err) {
				return userNotFound(id)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for restore")
		}

		if user.Active() {
			return nil
		}

		existing, err := s.repo.Users().FindActiveByEmailTx(ctx, tx, user.Email)
		if err != nil && !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}
		if existing != nil && existing.ID != user.ID {
			return ErrEmailTaken
		}

		return s.repo.Users().RestoreTx(ctx, tx, user)
	})

	if err != nil {
		return s.finishErr(err)
	}

	s.emit(ctx, ActivityEventUserRestored, user.ID.String(), user.Email, nil)

	return nil
}

// Purge permanently removes a user in any state. Irreversible.
func (s *Lifecycle) Purge(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user := &User{}
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = s.repo.Users().FindByIDTx(ctx, tx, id, true); err != nil {
			if goerrors.IsNotFound(err) {
				return userNotFound(id)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for purge")
		}

		return s.repo.Users().PurgeTx(ctx, tx, user)
	})

	if err != nil {
		return s.finishErr(err)
	}

	s.emit(ctx, ActivityEventUserPurged, user.ID.String(), user.Email, nil)

	return nil
}

func (s *Lifecycle) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// finishErr maps deadline failures to the timeout error and keeps rich
// errors intact; everything else becomes an internal failure.
func (s *Lifecycle) finishErr(err error) error {
	if err == nil {
		return nil
	}
	if timeoutErr := asTimeout(err); timeoutErr != nil {
		return timeoutErr
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "user lifecycle operation failed")
}

func (s *Lifecycle) lookupErr(err error, id uuid.UUID) error {
	if goerrors.IsNotFound(err) {
		return userNotFound(id)
	}
	if timeoutErr := asTimeout(err); timeoutErr != nil {
		return timeoutErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
}

func asTimeout(err error) error {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return ErrDeadlineExceeded
	}
	return nil
}

func (s *Lifecycle) emit(ctx context.Context, eventType ActivityEventType, userID, email string, metadata map[string]any) {
	sink := normalizeActivitySink(s.sink)

	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Email:      email,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	// the event context may already be past its deadline
	if err := sink.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}
