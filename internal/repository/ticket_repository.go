package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const ticketColumns = `id, org_id, number, parent_ticket_id, address, lat, lon, geometry,
       work_type, work_description, project_ref, requested_start, legal_dig_date,
       update_by, expires_at, status, risk_score, total_utilities, responded_utilities,
       version, created_at, updated_at, closed_at`

// TicketFilter captures dashboard search parameters.
type TicketFilter struct {
	Statuses    []domain.TicketStatus
	ProjectRef  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error)
	// GetByIDForUpdate takes a row lock; callers must hold a transaction.
	GetByIDForUpdate(ctx context.Context, orgID, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, orgID, number string) (*domain.Ticket, error)
	// Update writes the ticket back guarded by its version; the version is
	// bumped on success. Returns pgx.ErrNoRows when the version is stale.
	Update(ctx context.Context, ticket *domain.Ticket) error
	ListWithFilter(ctx context.Context, orgID string, filter TicketFilter) ([]domain.Ticket, error)
	// ListActive returns non-terminal tickets across all orgs for the
	// scanner sweep.
	ListActive(ctx context.Context, limit, offset int) ([]domain.Ticket, error)
	// ListExpireDue returns non-terminal tickets past their expiration.
	ListExpireDue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	// ListExpiredOn returns tickets that expired on the given day.
	ListExpiredOn(ctx context.Context, day time.Time, limit int) ([]domain.Ticket, error)
	// FindCovering returns active tickets whose dig site covers the given
	// location and whose validity spans the date.
	FindCovering(ctx context.Context, orgID, address string, lat, lon *float64, date time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (org_id, number, parent_ticket_id, address, lat, lon, geometry,
            work_type, work_description, project_ref, requested_start, legal_dig_date,
            update_by, expires_at, status, risk_score, total_utilities, responded_utilities)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, version, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		ticket.OrgID,
		ticket.Number,
		ticket.ParentTicketID,
		ticket.Site.Address,
		ticket.Site.Lat,
		ticket.Site.Lon,
		ticket.Site.Geometry,
		ticket.WorkType,
		ticket.WorkDescription,
		ticket.ProjectRef,
		ticket.RequestedStart,
		ticket.LegalDigDate,
		ticket.UpdateBy,
		ticket.ExpiresAt,
		ticket.Status,
		ticket.RiskScore,
		ticket.TotalUtilities,
		ticket.RespondedUtilities,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE org_id=$1 AND id=$2`, ticketColumns)
	return r.fetchSingle(ctx, query, orgID, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, orgID, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE org_id=$1 AND id=$2 FOR UPDATE`, ticketColumns)
	return r.fetchSingle(ctx, query, orgID, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, orgID, number string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE org_id=$1 AND number=$2`, ticketColumns)
	return r.fetchSingle(ctx, query, orgID, number)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, risk_score=$2, total_utilities=$3, responded_utilities=$4,
            legal_dig_date=$5, update_by=$6, expires_at=$7, closed_at=$8,
            version=version+1, updated_at=NOW()
        WHERE id=$9 AND org_id=$10 AND version=$11`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		ticket.Status,
		ticket.RiskScore,
		ticket.TotalUtilities,
		ticket.RespondedUtilities,
		ticket.LegalDigDate,
		ticket.UpdateBy,
		ticket.ExpiresAt,
		ticket.ClosedAt,
		ticket.ID,
		ticket.OrgID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, orgID string, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"org_id=$1"}
	args := []any{orgID}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ProjectRef != nil {
		args = append(args, *filter.ProjectRef)
		clauses = append(clauses, fmt.Sprintf("project_ref=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(number) LIKE %s OR LOWER(address) LIKE %s OR LOWER(work_description) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListActive(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE status NOT IN ('EXPIRED','CANCELLED','RENEWED')
        ORDER BY created_at LIMIT $1 OFFSET $2`, ticketColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListExpireDue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE expires_at < $1 AND status NOT IN ('EXPIRED','CANCELLED','RENEWED')
        ORDER BY expires_at LIMIT $2`, ticketColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListExpiredOn(ctx context.Context, day time.Time, limit int) ([]domain.Ticket, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE status = 'EXPIRED' AND expires_at >= $1 AND expires_at < $2
        ORDER BY expires_at LIMIT $3`, ticketColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) FindCovering(ctx context.Context, orgID, address string, lat, lon *float64, date time.Time) ([]domain.Ticket, error) {
	clauses := []string{
		"org_id=$1",
		"status NOT IN ('EXPIRED','CANCELLED','RENEWED')",
		"legal_dig_date <= $2",
		"expires_at >= $2",
	}
	args := []any{orgID, date}

	if lat != nil && lon != nil {
		// Coarse bounding box, roughly a quarter mile.
		args = append(args, *lat, *lon)
		clauses = append(clauses, fmt.Sprintf(
			"lat IS NOT NULL AND lon IS NOT NULL AND abs(lat-$%d) < 0.004 AND abs(lon-$%d) < 0.005",
			len(args)-1, len(args)))
	} else {
		args = append(args, strings.ToLower(strings.TrimSpace(address)))
		clauses = append(clauses, fmt.Sprintf("LOWER(address)=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY legal_dig_date`,
		ticketColumns, strings.Join(clauses, " AND "))
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicketRow(querierFrom(ctx, r.pool).QueryRow(ctx, query, args...), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.OrgID,
		&ticket.Number,
		&ticket.ParentTicketID,
		&ticket.Site.Address,
		&ticket.Site.Lat,
		&ticket.Site.Lon,
		&ticket.Site.Geometry,
		&ticket.WorkType,
		&ticket.WorkDescription,
		&ticket.ProjectRef,
		&ticket.RequestedStart,
		&ticket.LegalDigDate,
		&ticket.UpdateBy,
		&ticket.ExpiresAt,
		&ticket.Status,
		&ticket.RiskScore,
		&ticket.TotalUtilities,
		&ticket.RespondedUtilities,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicketRow(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
