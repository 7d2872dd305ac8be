package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const responseColumns = `id, ticket_id, org_id, utility_code, utility_name, facility_type,
       status, response_type, response_version, window_open, window_close,
       marking_details, marking_color, photo_ref, conflict_reason, conflict_resolution,
       resolved_by, resolved_at, responded_at, archived_at, created_at, updated_at`

// ResponseRepository persists per-utility response rows.
type ResponseRepository interface {
	CreateBatch(ctx context.Context, responses []domain.UtilityResponse) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.UtilityResponse, error)
	// GetForUpdate locks the row; callers must hold a transaction.
	GetForUpdate(ctx context.Context, ticketID, utilityCode string) (*domain.UtilityResponse, error)
	Update(ctx context.Context, response *domain.UtilityResponse) error
	// ArchiveByTicket soft-deletes all rows of a ticket for audit retention.
	ArchiveByTicket(ctx context.Context, ticketID string, at time.Time) error
	// ListOverdue returns unanswered rows past their window close, joined
	// with their ticket still being active.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.UtilityResponse, error)
}

type responseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository instantiates the repository.
func NewResponseRepository(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepository{pool: pool}
}

func (r *responseRepository) CreateBatch(ctx context.Context, responses []domain.UtilityResponse) error {
	const query = `
        INSERT INTO utility_responses (ticket_id, org_id, utility_code, utility_name,
            facility_type, status, window_open, window_close)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	q := querierFrom(ctx, r.pool)
	for i := range responses {
		resp := &responses[i]
		if err := q.QueryRow(ctx, query,
			resp.TicketID,
			resp.OrgID,
			resp.UtilityCode,
			resp.UtilityName,
			resp.FacilityType,
			resp.Status,
			resp.WindowOpen,
			resp.WindowClose,
		).Scan(&resp.ID, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *responseRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.UtilityResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM utility_responses WHERE ticket_id=$1 ORDER BY utility_code`, responseColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResponses(rows)
}

func (r *responseRepository) GetForUpdate(ctx context.Context, ticketID, utilityCode string) (*domain.UtilityResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM utility_responses WHERE ticket_id=$1 AND utility_code=$2 FOR UPDATE`, responseColumns)
	var resp domain.UtilityResponse
	if err := scanResponseRow(querierFrom(ctx, r.pool).QueryRow(ctx, query, ticketID, utilityCode), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepository) Update(ctx context.Context, response *domain.UtilityResponse) error {
	const query = `
        UPDATE utility_responses SET status=$1, response_type=$2, response_version=$3,
            marking_details=$4, marking_color=$5, photo_ref=$6, conflict_reason=$7,
            conflict_resolution=$8, resolved_by=$9, resolved_at=$10, responded_at=$11,
            updated_at=NOW()
        WHERE id=$12`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		response.Status,
		response.ResponseType,
		response.ResponseVersion,
		response.MarkingDetails,
		response.MarkingColor,
		response.PhotoRef,
		response.ConflictReason,
		response.ConflictResolution,
		response.ResolvedBy,
		response.ResolvedAt,
		response.RespondedAt,
		response.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *responseRepository) ArchiveByTicket(ctx context.Context, ticketID string, at time.Time) error {
	const query = `UPDATE utility_responses SET archived_at=$1, updated_at=NOW()
        WHERE ticket_id=$2 AND archived_at IS NULL`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, query, at, ticketID)
	return err
}

func (r *responseRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.UtilityResponse, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM utility_responses ur
        WHERE ur.status='PENDING' AND ur.archived_at IS NULL AND ur.window_close < $1
          AND EXISTS (
              SELECT 1 FROM tickets t WHERE t.id = ur.ticket_id
                AND t.status NOT IN ('EXPIRED','CANCELLED','RENEWED'))
        ORDER BY ur.window_close LIMIT $2`,
		prefixColumns(responseColumns, "ur"))
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResponses(rows)
}

func scanResponseRow(row rowScanner, resp *domain.UtilityResponse) error {
	return row.Scan(
		&resp.ID,
		&resp.TicketID,
		&resp.OrgID,
		&resp.UtilityCode,
		&resp.UtilityName,
		&resp.FacilityType,
		&resp.Status,
		&resp.ResponseType,
		&resp.ResponseVersion,
		&resp.WindowOpen,
		&resp.WindowClose,
		&resp.MarkingDetails,
		&resp.MarkingColor,
		&resp.PhotoRef,
		&resp.ConflictReason,
		&resp.ConflictResolution,
		&resp.ResolvedBy,
		&resp.ResolvedAt,
		&resp.RespondedAt,
		&resp.ArchivedAt,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	)
}

func scanResponses(rows pgx.Rows) ([]domain.UtilityResponse, error) {
	var result []domain.UtilityResponse
	for rows.Next() {
		var resp domain.UtilityResponse
		if err := scanResponseRow(rows, &resp); err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, rows.Err()
}
