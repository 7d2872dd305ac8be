package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MarkerRepository persists the once-per-day dedup markers. The dispatcher
// claims the (org, ticket, alert type, day) row before fanning a trigger
// out; the insert's unique index is what makes concurrent duplicates lose.
// A claim is released again when no channel delivered anything, so the
// next sweep retries the day's alert.
type MarkerRepository interface {
	Sent(ctx context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error)
	// Claim inserts the marker row; false means another worker holds it.
	Claim(ctx context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error)
	Release(ctx context.Context, orgID, ticketID, alertType string, day time.Time) error
}

type markerRepository struct {
	pool *pgxpool.Pool
}

// NewMarkerRepository instantiates the repository.
func NewMarkerRepository(pool *pgxpool.Pool) MarkerRepository {
	return &markerRepository{pool: pool}
}

func (r *markerRepository) Sent(ctx context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error) {
	const query = `SELECT EXISTS(
        SELECT 1 FROM alert_markers
        WHERE org_id=$1 AND ticket_id=$2 AND alert_type=$3 AND day=$4)`
	var exists bool
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query,
		orgID, ticketID, alertType, day.Format("2006-01-02")).Scan(&exists)
	return exists, err
}

func (r *markerRepository) Claim(ctx context.Context, orgID, ticketID, alertType string, day time.Time) (bool, error) {
	const query = `
        INSERT INTO alert_markers (org_id, ticket_id, alert_type, day)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT DO NOTHING`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		orgID, ticketID, alertType, day.Format("2006-01-02"))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *markerRepository) Release(ctx context.Context, orgID, ticketID, alertType string, day time.Time) error {
	const query = `
        DELETE FROM alert_markers
        WHERE org_id=$1 AND ticket_id=$2 AND alert_type=$3 AND day=$4`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		orgID, ticketID, alertType, day.Format("2006-01-02"))
	return err
}
