package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const subscriberColumns = `id, org_id, email, name, phone, device_token, role,
       password_hash, escalation_target_id, is_active, created_at, updated_at`

// SubscriberRepository persists notification recipients / API principals.
type SubscriberRepository interface {
	Create(ctx context.Context, sub *domain.Subscriber) error
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
	GetByEmail(ctx context.Context, orgID, email string) (*domain.Subscriber, error)
	Update(ctx context.Context, sub *domain.Subscriber) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type subscriberRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepository instantiates the repository.
func NewSubscriberRepository(pool *pgxpool.Pool) SubscriberRepository {
	return &subscriberRepository{pool: pool}
}

func (r *subscriberRepository) Create(ctx context.Context, sub *domain.Subscriber) error {
	const query = `
        INSERT INTO subscribers (org_id, email, name, phone, device_token, role,
            password_hash, escalation_target_id, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		sub.OrgID,
		sub.Email,
		sub.Name,
		sub.Phone,
		sub.DeviceToken,
		sub.Role,
		sub.PasswordHash,
		sub.EscalationTargetID,
		sub.IsActive,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

func (r *subscriberRepository) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscribers WHERE id=$1`, subscriberColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *subscriberRepository) GetByEmail(ctx context.Context, orgID, email string) (*domain.Subscriber, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscribers WHERE org_id=$1 AND email=$2`, subscriberColumns)
	return r.fetchSingle(ctx, query, orgID, email)
}

func (r *subscriberRepository) Update(ctx context.Context, sub *domain.Subscriber) error {
	const query = `
        UPDATE subscribers SET name=$1, phone=$2, device_token=$3, role=$4,
            escalation_target_id=$5, is_active=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		sub.Name,
		sub.Phone,
		sub.DeviceToken,
		sub.Role,
		sub.EscalationTargetID,
		sub.IsActive,
		sub.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *subscriberRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx,
		`UPDATE subscribers SET password_hash=$1, updated_at=NOW() WHERE id=$2`,
		passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *subscriberRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&sub.ID,
		&sub.OrgID,
		&sub.Email,
		&sub.Name,
		&sub.Phone,
		&sub.DeviceToken,
		&sub.Role,
		&sub.PasswordHash,
		&sub.EscalationTargetID,
		&sub.IsActive,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}
