package users

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the persistence surface for user records. The store owns all
// durable state; callers receive copies and go through these operations for
// every mutation. Soft delete is modeled by the deleted_at column: active
// lookups skip deleted rows, restore clears the marker, purge removes the
// row for good.
type Users interface {
	repository.Repository[*User]

	FindActiveByEmail(ctx context.Context, email string) (*User, error)
	FindActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByEmailAnyState(ctx context.Context, email string) (*User, error)
	FindByEmailAnyStateTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, includeDeleted bool) (*User, error)
	ListActive(ctx context.Context) ([]*User, error)

	Save(ctx context.Context, record *User) (*User, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	SoftDelete(ctx context.Context, record *User) error
	SoftDeleteTx(ctx context.Context, tx bun.IDB, record *User) error
	Restore(ctx context.Context, record *User) error
	RestoreTx(ctx context.Context, tx bun.IDB, record *User) error
	Purge(ctx context.Context, record *User) error
	PurgeTx(ctx context.Context, tx bun.IDB, record *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the bun-backed Users store.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindActiveByEmailTx(ctx, a.db, email)
}

func (a *users) FindActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findByEmailTx(ctx, tx, email, false)
}

func (a *users) FindByEmailAnyState(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailAnyStateTx(ctx, a.db, email)
}

// FindByEmailAnyStateTx looks the email up across active and soft-deleted
// rows. Registration uses it so an email parked on a soft-deleted record
// cannot be claimed again.
func (a *users) FindByEmailAnyStateTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findByEmailTx(ctx, tx, email, true)
}

func (a *users) findByEmailTx(ctx context.Context, tx bun.IDB, email string, includeDeleted bool) (*User, error) {
	record := &User{}

	q := tx.NewSelect().Model(record)
	if includeDeleted {
		q = q.WhereAllWithDeleted()
	}

	err := q.
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id, includeDeleted)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, includeDeleted bool) (*User, error) {
	record := &User{}

	q := tx.NewSelect().Model(record)
	if includeDeleted {
		q = q.WhereAllWithDeleted()
	}

	err := q.
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ListActive(ctx context.Context) ([]*User, error) {
	var records []*User

	err := a.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) Save(ctx context.Context, record *User) (*User, error) {
	return a.SaveTx(ctx, a.db, record)
}

func (a *users) SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
}

func (a *users) SoftDelete(ctx context.Context, record *User) error {
	return a.SoftDeleteTx(ctx, a.db, record)
}

// SoftDeleteTx marks the record deleted. bun translates the delete into an
// UPDATE that stamps deleted_at because of the soft_delete model tag.
func (a *users) SoftDeleteTx(ctx context.Context, tx bun.IDB, record *User) error {
	res, err := tx.NewDelete().
		Model(record).
		WherePK().
		Exec(ctx)

	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": record.ID.String()})
	}

	return nil
}

func (a *users) Restore(ctx context.Context, record *User) error {
	return a.RestoreTx(ctx, a.db, record)
}

// RestoreTx clears deleted_at, making the record visible to active lookups
// again.
func (a *users) RestoreTx(ctx context.Context, tx bun.IDB, record *User) error {
	record.DeletedAt = nil

	res, err := tx.NewUpdate().
		Model(record).
		Column("deleted_at").
		WherePK().
		WhereAllWithDeleted().
		Exec(ctx)

	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": record.ID.String()})
	}

	return nil
}

func (a *users) Purge(ctx context.Context, record *User) error {
	return a.PurgeTx(ctx, a.db, record)
}

// PurgeTx physically removes the row in any state. Irreversible.
func (a *users) PurgeTx(ctx context.Context, tx bun.IDB, record *User) error {
	res, err := tx.NewDelete().
		Model(record).
		WherePK().
		ForceDelete().
		Exec(ctx)

	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": record.ID.String()})
	}

	return nil
}
