package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordResetToken is a one-time credential recovery token.
type PasswordResetToken struct {
	ID           string
	SubscriberID string
	Token        string
	ExpiresAt    time.Time
	UsedAt       *time.Time
	CreatedAt    time.Time
}

// PasswordResetRepository persists reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

type passwordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository instantiates the repository.
func NewPasswordResetRepository(pool *pgxpool.Pool) PasswordResetRepository {
	return &passwordResetRepository{pool: pool}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (subscriber_id, token, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		token.SubscriberID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	const query = `
        SELECT id, subscriber_id, token, expires_at, used_at, created_at
        FROM password_reset_tokens WHERE token=$1`
	var prt PasswordResetToken
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, token).Scan(
		&prt.ID,
		&prt.SubscriberID,
		&prt.Token,
		&prt.ExpiresAt,
		&prt.UsedAt,
		&prt.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &prt, nil
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx,
		`UPDATE password_reset_tokens SET used_at=$1 WHERE id=$2 AND used_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
