package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

const uniqueViolation = "23505"

var userOrderings = map[string]string{
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"class_name": "class_name",
	"created_at": "created_at",
}

type userRow struct {
	ID           string      `db:"id"`
	Username     string      `db:"username"`
	Email        null.String `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	ClassName    null.String `db:"class_name"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		PasswordHash: usr.PasswordHash,
		Role:         string(usr.Role),
		ClassName:    null.NewString(usr.ClassName, usr.ClassName != ""),
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email.String,
		PasswordHash: r.PasswordHash,
		Role:         user.Role(r.Role),
		ClassName:    r.ClassName.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string) error {
	var taken []string
	err := repo.db.SelectContext(
		ctx,
		&taken,
		`SELECT CASE WHEN username = $1 THEN 'username' ELSE 'email' END
		FROM users WHERE username = $1 OR (email IS NOT NULL AND email = $2)`,
		username, email,
	)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, field := range taken {
		if field == "username" {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO users (id, username, email, password_hash, role, class_name, created_at, updated_at)
		VALUES (:id, :username, :email, :password_hash, :role, :class_name, :created_at, :updated_at)`,
		newUserRow(usr),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			switch pqErr.Constraint {
			case "users_username_key":
				return user.User{}, user.ErrUsernameExists
			case "users_email_key":
				return user.User{}, user.ErrEmailExists
			}
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		where string
		arg   string
	)
	switch {
	case filter.ID != "":
		where, arg = "id = $1", filter.ID
	case filter.Email != "":
		where, arg = "email = $1", filter.Email
	case filter.UsernameOrEmail != "":
		where, arg = "(username = $1 OR email = $1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM users WHERE "+where+" LIMIT 1", arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return r.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, "(username ILIKE $1 OR email ILIKE $1)")
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		args = append(args, pq.Array(roles))
		conds = append(conds, "role = ANY("+placeholder(len(args))+")")
	}
	if filter.ClassName != "" {
		args = append(args, filter.ClassName)
		conds = append(conds, "class_name = "+placeholder(len(args)))
	}

	q := "SELECT * FROM users"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, userOrderings, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdatePassword(ctx context.Context, id string, hash []byte, updatedAt time.Time) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3", hash, updatedAt, id)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	return expectAffected(res, user.ErrNotFound)
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return expectAffected(res, user.ErrNotFound)
}
