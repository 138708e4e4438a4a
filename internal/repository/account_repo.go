package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-clinic-api/internal/model"
)

const accountColumns = `id, name, email, password_hash, role, patient_id, created_at, updated_at`

// accountTable holds the queries shared by both account stores. The two
// tables have the same shape and differ only in name and kind.
type accountTable struct {
	pool  *pgxpool.Pool
	table string
	kind  model.AccountKind
}

func (t accountTable) findOne(ctx context.Context, where string, arg any) (model.Account, error) {
	row := t.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+t.table+` WHERE `+where, arg)

	account, err := t.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find %s account: %w", t.kind, err)
	}
	return account, nil
}

func (t accountTable) FindByID(ctx context.Context, id string) (model.Account, error) {
	if !validID(id) {
		return model.Account{}, model.ErrAccountNotFound
	}
	return t.findOne(ctx, `id = $1`, id)
}

func (t accountTable) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	return t.findOne(ctx, `lower(email) = lower($1)`, model.NormalizeEmail(email))
}

func (t accountTable) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := t.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+t.table+` WHERE lower(email) = lower($1))`,
		model.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s email exists: %w", t.kind, err)
	}
	return exists, nil
}

func (t accountTable) Create(ctx context.Context, a model.Account) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO `+t.table+` (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, model.NormalizeEmail(a.Email), a.PasswordHash, string(a.Role), a.PatientID, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrAccountAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create %s account: %w", t.kind, err)
	}
	return nil
}

// UpdatePassword replaces the stored credential in a single statement.
func (t accountTable) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	if !validID(id) {
		return model.ErrAccountNotFound
	}
	tag, err := t.pool.Exec(ctx,
		`UPDATE `+t.table+` SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update %s password: %w", t.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (t accountTable) Count(ctx context.Context) (int, error) {
	var count int
	if err := t.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+t.table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s accounts: %w", t.kind, err)
	}
	return count, nil
}

func (t accountTable) scan(row pgx.Row) (model.Account, error) {
	var (
		a    model.Account
		role string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.PatientID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Account{}, err
	}

	a.Kind = t.kind
	a.Role = model.Role(role)
	return a, nil
}

// validID keeps malformed identifiers from reaching a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
