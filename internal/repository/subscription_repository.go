package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const subscriptionColumns = `id, org_id, subscriber_id, scope, project_ref, alert_types,
       channels, quiet_start, quiet_end, enabled, created_at, updated_at`

// SubscriptionRepository persists alert preference records.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *domain.AlertSubscription) error
	ListBySubscriber(ctx context.Context, orgID, subscriberID string) ([]domain.AlertSubscription, error)
	// ListEnabled returns every enabled subscription in an org; the
	// dispatcher filters by scope and alert type in memory.
	ListEnabled(ctx context.Context, orgID string) ([]domain.AlertSubscription, error)
	Delete(ctx context.Context, orgID, id string) error
}

type subscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository instantiates the repository.
func NewSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepository{pool: pool}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *domain.AlertSubscription) error {
	const query = `
        INSERT INTO alert_subscriptions (org_id, subscriber_id, scope, project_ref,
            alert_types, channels, quiet_start, quiet_end, enabled)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (org_id, subscriber_id, scope, project_ref)
        DO UPDATE SET alert_types=EXCLUDED.alert_types, channels=EXCLUDED.channels,
            quiet_start=EXCLUDED.quiet_start, quiet_end=EXCLUDED.quiet_end,
            enabled=EXCLUDED.enabled, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	var quietStart, quietEnd *string
	if sub.Quiet != nil {
		quietStart = &sub.Quiet.Start
		quietEnd = &sub.Quiet.End
	}
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		sub.OrgID,
		sub.SubscriberID,
		sub.Scope,
		sub.ProjectRef,
		alertTypeStrings(sub.AlertTypes),
		channelStrings(sub.Channels),
		quietStart,
		quietEnd,
		sub.Enabled,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

func (r *subscriptionRepository) ListBySubscriber(ctx context.Context, orgID, subscriberID string) ([]domain.AlertSubscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_subscriptions WHERE org_id=$1 AND subscriber_id=$2 ORDER BY created_at`, subscriptionColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *subscriptionRepository) ListEnabled(ctx context.Context, orgID string) ([]domain.AlertSubscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_subscriptions WHERE org_id=$1 AND enabled`, subscriptionColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *subscriptionRepository) Delete(ctx context.Context, orgID, id string) error {
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx,
		`DELETE FROM alert_subscriptions WHERE org_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanSubscriptions(rows pgx.Rows) ([]domain.AlertSubscription, error) {
	var result []domain.AlertSubscription
	for rows.Next() {
		var (
			sub        domain.AlertSubscription
			alertTypes []string
			channels   []string
			quietStart *string
			quietEnd   *string
		)
		if err := rows.Scan(
			&sub.ID,
			&sub.OrgID,
			&sub.SubscriberID,
			&sub.Scope,
			&sub.ProjectRef,
			&alertTypes,
			&channels,
			&quietStart,
			&quietEnd,
			&sub.Enabled,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		for _, at := range alertTypes {
			sub.AlertTypes = append(sub.AlertTypes, domain.AlertType(at))
		}
		for _, ch := range channels {
			sub.Channels = append(sub.Channels, domain.Channel(ch))
		}
		if quietStart != nil && quietEnd != nil {
			sub.Quiet = &domain.QuietWindow{Start: *quietStart, End: *quietEnd}
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func alertTypeStrings(types []domain.AlertType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func channelStrings(channels []domain.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}
