package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// UserRepository implements ports.UserRepository on the kod_users table.
// Balances travel as minor units; the column is NUMERIC(15,2).
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const insertUser = `INSERT INTO kod_users (uid, username, email, password, phone, balance, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::bigint / 100.0, $7, $8, $9)`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, insertUser,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Phone,
		int64(user.Balance), user.Role, user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	created := *user
	return &created, nil
}

const selectUserByUsername = `SELECT uid::text, username, email, password, phone, (balance * 100)::bigint, role, created_at, updated_at
FROM kod_users WHERE username = $1`

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		u       domain.User
		balance int64
	)
	err := r.db.QueryRow(ctx, selectUserByUsername, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &balance, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.Balance = domain.Amount(balance)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

const existsUser = `SELECT EXISTS (SELECT 1 FROM kod_users WHERE username = $1 OR lower(email) = $2)`

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRow(ctx, existsUser, username, domain.EmailKey(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing user: %w", err)
	}
	return exists, nil
}
