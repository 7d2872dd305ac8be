package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const ackColumns = `id, org_id, alert_id, ticket_id, subscriber_id, status, deadline,
       acknowledged_at, escalated_at, escalation_target_id, escalation_alert_id,
       created_at, updated_at`

// AckRepository persists acknowledgement chains.
type AckRepository interface {
	Create(ctx context.Context, ack *domain.AlertAcknowledgement) error
	GetByID(ctx context.Context, orgID, id string) (*domain.AlertAcknowledgement, error)
	GetByAlert(ctx context.Context, orgID, alertID string) (*domain.AlertAcknowledgement, error)
	// Advance moves the chain forward; the caller validates the transition.
	Advance(ctx context.Context, id string, from, to domain.AckStatus, at time.Time) error
	// MarkEscalated flips an open chain to ESCALATED exactly once: the
	// guarded UPDATE returns pgx.ErrNoRows when another sweep got there
	// first or the chain already closed.
	MarkEscalated(ctx context.Context, id, targetID, escalationAlertID string, at time.Time) error
	// ListOverdue returns open chains whose deadline has passed.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.AlertAcknowledgement, error)
	ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.AlertAcknowledgement, error)
}

type ackRepository struct {
	pool *pgxpool.Pool
}

// NewAckRepository instantiates the repository.
func NewAckRepository(pool *pgxpool.Pool) AckRepository {
	return &ackRepository{pool: pool}
}

func (r *ackRepository) Create(ctx context.Context, ack *domain.AlertAcknowledgement) error {
	const query = `
        INSERT INTO alert_acknowledgements (org_id, alert_id, ticket_id, subscriber_id,
            status, deadline, escalation_target_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		ack.OrgID,
		ack.AlertID,
		ack.TicketID,
		ack.SubscriberID,
		ack.Status,
		ack.Deadline,
		ack.EscalationTargetID,
	).Scan(&ack.ID, &ack.CreatedAt, &ack.UpdatedAt)
}

func (r *ackRepository) GetByID(ctx context.Context, orgID, id string) (*domain.AlertAcknowledgement, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_acknowledgements WHERE org_id=$1 AND id=$2`, ackColumns)
	return r.fetchSingle(ctx, query, orgID, id)
}

func (r *ackRepository) GetByAlert(ctx context.Context, orgID, alertID string) (*domain.AlertAcknowledgement, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_acknowledgements WHERE org_id=$1 AND alert_id=$2`, ackColumns)
	return r.fetchSingle(ctx, query, orgID, alertID)
}

func (r *ackRepository) Advance(ctx context.Context, id string, from, to domain.AckStatus, at time.Time) error {
	query := `UPDATE alert_acknowledgements SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	args := []any{to, id, from}
	if to == domain.AckAcknowledged {
		query = `UPDATE alert_acknowledgements SET status=$1, acknowledged_at=$4, updated_at=NOW()
                 WHERE id=$2 AND status=$3`
		args = append(args, at)
	}
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ackRepository) MarkEscalated(ctx context.Context, id, targetID, escalationAlertID string, at time.Time) error {
	const query = `
        UPDATE alert_acknowledgements
        SET status='ESCALATED', escalated_at=$1, escalation_target_id=$2,
            escalation_alert_id=$3, updated_at=NOW()
        WHERE id=$4 AND status IN ('SENT','DELIVERED','OPENED') AND escalated_at IS NULL`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, at, targetID, escalationAlertID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ackRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.AlertAcknowledgement, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM alert_acknowledgements
        WHERE status IN ('SENT','DELIVERED','OPENED') AND deadline < $1
        ORDER BY deadline LIMIT $2`, ackColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAcks(rows)
}

func (r *ackRepository) ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.AlertAcknowledgement, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_acknowledgements WHERE org_id=$1 AND ticket_id=$2 ORDER BY created_at`, ackColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAcks(rows)
}

func (r *ackRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.AlertAcknowledgement, error) {
	var ack domain.AlertAcknowledgement
	if err := scanAckRow(querierFrom(ctx, r.pool).QueryRow(ctx, query, args...), &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func scanAckRow(row rowScanner, ack *domain.AlertAcknowledgement) error {
	return row.Scan(
		&ack.ID,
		&ack.OrgID,
		&ack.AlertID,
		&ack.TicketID,
		&ack.SubscriberID,
		&ack.Status,
		&ack.Deadline,
		&ack.AcknowledgedAt,
		&ack.EscalatedAt,
		&ack.EscalationTargetID,
		&ack.EscalationAlertID,
		&ack.CreatedAt,
		&ack.UpdatedAt,
	)
}

func scanAcks(rows pgx.Rows) ([]domain.AlertAcknowledgement, error) {
	var result []domain.AlertAcknowledgement
	for rows.Next() {
		var ack domain.AlertAcknowledgement
		if err := scanAckRow(rows, &ack); err != nil {
			return nil, err
		}
		result = append(result, ack)
	}
	return result, rows.Err()
}
