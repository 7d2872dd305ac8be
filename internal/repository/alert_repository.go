package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const alertColumns = `id, org_id, ticket_id, alert_type, channel, subscriber_id, attempt,
       priority, message, status, delivery_id, sent_at, delivered_at, read_at,
       failed_at, failure_reason, created_at`

// AlertRepository persists dispatch records. Rows are append-only; the
// Mark* methods only advance status columns forward, the audit columns are
// never rewritten.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.TicketAlert) error
	GetByID(ctx context.Context, orgID, id string) (*domain.TicketAlert, error)
	MarkSent(ctx context.Context, id, deliveryID string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
	MarkDelivered(ctx context.Context, orgID, id string, at time.Time) error
	MarkRead(ctx context.Context, orgID, id string, at time.Time) error
	ListByTicket(ctx context.Context, orgID, ticketID string, from, to *time.Time) ([]domain.TicketAlert, error)
	// ListFeed returns the subscriber's in-app alert feed, newest first.
	ListFeed(ctx context.Context, orgID, subscriberID string, limit int) ([]domain.TicketAlert, error)
}

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository instantiates the repository.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

func (r *alertRepository) Create(ctx context.Context, alert *domain.TicketAlert) error {
	const query = `
        INSERT INTO ticket_alerts (org_id, ticket_id, alert_type, channel, subscriber_id,
            attempt, priority, message, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		alert.OrgID,
		alert.TicketID,
		alert.Type,
		alert.Channel,
		alert.SubscriberID,
		alert.Attempt,
		alert.Priority,
		alert.Message,
		alert.Status,
	).Scan(&alert.ID, &alert.CreatedAt)
}

func (r *alertRepository) GetByID(ctx context.Context, orgID, id string) (*domain.TicketAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticket_alerts WHERE org_id=$1 AND id=$2`, alertColumns)
	var alert domain.TicketAlert
	if err := scanAlertRow(querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, id), &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) MarkSent(ctx context.Context, id, deliveryID string, at time.Time) error {
	return r.advance(ctx,
		`UPDATE ticket_alerts SET status='SENT', delivery_id=$1, sent_at=$2
         WHERE id=$3 AND status='PENDING'`, deliveryID, at, id)
}

func (r *alertRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	return r.advance(ctx,
		`UPDATE ticket_alerts SET status='FAILED', failure_reason=$1, failed_at=$2
         WHERE id=$3 AND status='PENDING'`, reason, at, id)
}

func (r *alertRepository) MarkDelivered(ctx context.Context, orgID, id string, at time.Time) error {
	return r.advance(ctx,
		`UPDATE ticket_alerts SET status='DELIVERED', delivered_at=$1
         WHERE org_id=$2 AND id=$3 AND status='SENT'`, at, orgID, id)
}

func (r *alertRepository) MarkRead(ctx context.Context, orgID, id string, at time.Time) error {
	return r.advance(ctx,
		`UPDATE ticket_alerts SET status='READ', read_at=$1
         WHERE org_id=$2 AND id=$3 AND status IN ('SENT','DELIVERED')`, at, orgID, id)
}

func (r *alertRepository) advance(ctx context.Context, query string, args ...any) error {
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *alertRepository) ListByTicket(ctx context.Context, orgID, ticketID string, from, to *time.Time) ([]domain.TicketAlert, error) {
	clauses := "org_id=$1 AND ticket_id=$2"
	args := []any{orgID, ticketID}
	if from != nil {
		args = append(args, *from)
		clauses += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		clauses += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM ticket_alerts WHERE %s ORDER BY created_at`, alertColumns, clauses)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *alertRepository) ListFeed(ctx context.Context, orgID, subscriberID string, limit int) ([]domain.TicketAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
        SELECT %s FROM ticket_alerts
        WHERE org_id=$1 AND subscriber_id=$2
        ORDER BY created_at DESC LIMIT $3`, alertColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID, subscriberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlertRow(row rowScanner, alert *domain.TicketAlert) error {
	return row.Scan(
		&alert.ID,
		&alert.OrgID,
		&alert.TicketID,
		&alert.Type,
		&alert.Channel,
		&alert.SubscriberID,
		&alert.Attempt,
		&alert.Priority,
		&alert.Message,
		&alert.Status,
		&alert.DeliveryID,
		&alert.SentAt,
		&alert.DeliveredAt,
		&alert.ReadAt,
		&alert.FailedAt,
		&alert.FailureReason,
		&alert.CreatedAt,
	)
}

func scanAlerts(rows pgx.Rows) ([]domain.TicketAlert, error) {
	var result []domain.TicketAlert
	for rows.Next() {
		var alert domain.TicketAlert
		if err := scanAlertRow(rows, &alert); err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}
