package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/otp"
)

type otpRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	Verified  bool      `db:"verified"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (r otpRow) toCode() otp.Code {
	return otp.Code{
		ID:        r.ID,
		Email:     r.Email,
		Code:      r.Code,
		Verified:  r.Verified,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

type otpRepository struct {
	db *sqlx.DB
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *sqlx.DB) otp.Repository {
	return &otpRepository{db: db}
}

// Replace serializes concurrent requests for the same email with a transaction scoped advisory lock.
func (repo *otpRepository) Replace(ctx context.Context, code otp.Code) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", code.Email); err != nil {
		return errors.Wrap(err, "locking email")
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM password_reset_codes WHERE email = $1", code.Email); err != nil {
		return errors.Wrap(err, "deleting codes")
	}
	_, err = tx.NamedExecContext(
		ctx,
		`INSERT INTO password_reset_codes (id, email, code, verified, created_at, expires_at)
		VALUES (:id, :email, :code, :verified, :created_at, :expires_at)`,
		otpRow{
			ID:        code.ID,
			Email:     code.Email,
			Code:      code.Code,
			Verified:  code.Verified,
			CreatedAt: code.CreatedAt,
			ExpiresAt: code.ExpiresAt,
		},
	)
	if err != nil {
		return errors.Wrap(err, "inserting code")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (repo *otpRepository) Find(ctx context.Context, email, code string) (otp.Code, error) {
	var r otpRow
	err := repo.db.GetContext(
		ctx,
		&r,
		"SELECT * FROM password_reset_codes WHERE email = $1 AND code = $2 ORDER BY created_at DESC LIMIT 1",
		email, code,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otp.Code{}, otp.ErrNotFound
		}
		return otp.Code{}, errors.Wrap(err, "selecting code")
	}
	return r.toCode(), nil
}

func (repo *otpRepository) MarkVerified(ctx context.Context, code otp.Code) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE password_reset_codes SET verified = true WHERE id = $1", code.ID)
	if err != nil {
		return errors.Wrap(err, "updating code")
	}
	return expectAffected(res, otp.ErrNotFound)
}

// Claim holds the same advisory lock as Replace while deleting the codes of the email.
func (repo *otpRepository) Claim(ctx context.Context, code otp.Code, now time.Time) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", code.Email); err != nil {
		return errors.Wrap(err, "locking email")
	}
	var id string
	err = tx.GetContext(
		ctx,
		&id,
		"DELETE FROM password_reset_codes WHERE id = $1 AND verified AND expires_at >= $2 RETURNING id",
		code.ID, now.UTC(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otp.ErrNotFound
		}
		return errors.Wrap(err, "claiming code")
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM password_reset_codes WHERE email = $1", code.Email); err != nil {
		return errors.Wrap(err, "deleting codes")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
