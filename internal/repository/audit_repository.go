package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/locate-service/internal/domain"
)

const auditColumns = `id, org_id, ticket_id, range_from, range_to, generated_at,
       retention_until, manifest, payload, sha256, created_at`

// AuditPackRepository persists generated compliance exports. Packs are
// insert-only; there is no update path.
type AuditPackRepository interface {
	Create(ctx context.Context, pack *domain.AuditPack) error
	GetByID(ctx context.Context, orgID, id string) (*domain.AuditPack, error)
	ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.AuditPack, error)
	// MaxRetention returns the latest retention_until across existing
	// packs for a ticket, or the zero time when none exist.
	MaxRetention(ctx context.Context, orgID, ticketID string) (time.Time, error)
}

type auditPackRepository struct {
	pool *pgxpool.Pool
}

// NewAuditPackRepository instantiates the repository.
func NewAuditPackRepository(pool *pgxpool.Pool) AuditPackRepository {
	return &auditPackRepository{pool: pool}
}

func (r *auditPackRepository) Create(ctx context.Context, pack *domain.AuditPack) error {
	manifest, err := json.Marshal(pack.Manifest)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO audit_packs (org_id, ticket_id, range_from, range_to, generated_at,
            retention_until, manifest, payload, sha256)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		pack.OrgID,
		pack.TicketID,
		pack.RangeFrom,
		pack.RangeTo,
		pack.GeneratedAt,
		pack.RetentionUntil,
		manifest,
		pack.Payload,
		pack.SHA256,
	).Scan(&pack.ID, &pack.CreatedAt)
}

func (r *auditPackRepository) GetByID(ctx context.Context, orgID, id string) (*domain.AuditPack, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_packs WHERE org_id=$1 AND id=$2`, auditColumns)
	var pack domain.AuditPack
	if err := scanAuditRow(querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, id), &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *auditPackRepository) ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.AuditPack, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_packs WHERE org_id=$1 AND ticket_id=$2 ORDER BY generated_at DESC`, auditColumns)
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditPack
	for rows.Next() {
		var pack domain.AuditPack
		if err := scanAuditRow(rows, &pack); err != nil {
			return nil, err
		}
		result = append(result, pack)
	}
	return result, rows.Err()
}

func (r *auditPackRepository) MaxRetention(ctx context.Context, orgID, ticketID string) (time.Time, error) {
	const query = `SELECT COALESCE(MAX(retention_until), 'epoch'::timestamptz)
        FROM audit_packs WHERE org_id=$1 AND ticket_id=$2`
	var max time.Time
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, ticketID).Scan(&max); err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if max.Unix() <= 0 {
		return time.Time{}, nil
	}
	return max, nil
}

func scanAuditRow(row rowScanner, pack *domain.AuditPack) error {
	var manifest []byte
	if err := row.Scan(
		&pack.ID,
		&pack.OrgID,
		&pack.TicketID,
		&pack.RangeFrom,
		&pack.RangeTo,
		&pack.GeneratedAt,
		&pack.RetentionUntil,
		&manifest,
		&pack.Payload,
		&pack.SHA256,
		&pack.CreatedAt,
	); err != nil {
		return err
	}
	if len(manifest) > 0 {
		if err := json.Unmarshal(manifest, &pack.Manifest); err != nil {
			return err
		}
	}
	return nil
}
