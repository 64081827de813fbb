package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, username, email, first_name, last_name, password_hash, is_active, last_login_at`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, first_name, last_name, password_hash, is_active)
VALUES ($1, $2, $3, $4, $5, $6, false)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), arg.Username, arg.Email, arg.FirstName, arg.LastName, arg.HashedPassword)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET password_hash = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updatePassword, id, hashedPassword)
	return collectUser(rows)
}

const setActive = `-- name: SetActive
UPDATE users
SET is_active = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setActive, id, active)
	return collectUser(rows)
}

const setLastLogin = `-- name: SetLastLogin
UPDATE users
SET last_login_at = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setLastLogin, id, at)
	return collectUser(rows)
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.HashedPassword, &u.Active, &u.LastLoginAt)
	return u, err
}
