package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/config"
	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// Generator assembles immutable audit packs: a gzip-compressed JSON
// snapshot of a ticket's full compliance trail over a date range, plus a
// manifest and content hash.
type Generator struct {
	tickets   repository.TicketRepository
	responses repository.ResponseRepository
	alerts    repository.AlertRepository
	acks      repository.AckRepository
	packs     repository.AuditPackRepository
	cfg       config.AuditConfig
	logger    *zap.Logger
	now       func() time.Time
}

// Dependencies bundles collaborators for the generator.
type Dependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.ResponseRepository
	AlertRepo    repository.AlertRepository
	AckRepo      repository.AckRepository
	PackRepo     repository.AuditPackRepository
	Config       config.AuditConfig
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewGenerator constructs a generator.
func NewGenerator(deps Dependencies) *Generator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Generator{
		tickets:   deps.TicketRepo,
		responses: deps.ResponseRepo,
		alerts:    deps.AlertRepo,
		acks:      deps.AckRepo,
		packs:     deps.PackRepo,
		cfg:       deps.Config,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

// packPayload is the serialized content of an audit pack. Field names are
// part of the export format.
type packPayload struct {
	Ticket           *domain.Ticket                `json:"ticket"`
	UtilityResponses []domain.UtilityResponse      `json:"utility_responses"`
	Alerts           []domain.TicketAlert          `json:"alerts"`
	Acknowledgements []domain.AlertAcknowledgement `json:"acknowledgements"`
	RangeFrom        time.Time                     `json:"range_from"`
	RangeTo          time.Time                     `json:"range_to"`
	GeneratedAt      time.Time                     `json:"generated_at"`
}

// Generate builds and persists a pack for one ticket over [from, to].
// Regenerating over the same range yields a new pack; retention is
// monotonic — a new pack may never shorten the longest retention already
// promised for the ticket.
func (g *Generator) Generate(ctx context.Context, orgID, ticketID string, from, to time.Time) (*domain.AuditPack, error) {
	if to.Before(from) {
		return nil, apperrors.NewInvalidDateRange("range end precedes range start")
	}

	ticket, err := g.tickets.GetByID(ctx, orgID, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	responses, err := g.responses.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	alerts, err := g.alerts.ListByTicket(ctx, orgID, ticketID, &from, &to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	acks, err := g.acks.ListByTicket(ctx, orgID, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := g.now()
	payload := packPayload{
		Ticket:           ticket,
		UtilityResponses: responses,
		Alerts:           alerts,
		Acknowledgements: acks,
		RangeFrom:        from,
		RangeTo:          to,
		GeneratedAt:      now,
	}
	compressed, err := marshalGzip(payload)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	retention := now.AddDate(g.cfg.RetentionYears, 0, 0)
	existing, err := g.packs.MaxRetention(ctx, orgID, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if retention.Before(existing) {
		return nil, apperrors.NewRetentionShortening(ticketID)
	}

	sum := sha256.Sum256(compressed)
	pack := &domain.AuditPack{
		OrgID:          orgID,
		TicketID:       ticketID,
		RangeFrom:      from,
		RangeTo:        to,
		GeneratedAt:    now,
		RetentionUntil: retention,
		Manifest: map[string]any{
			"ticket_number":     ticket.Number,
			"ticket_status":     string(ticket.Status),
			"utility_responses": len(responses),
			"alerts":            len(alerts),
			"acknowledgements":  len(acks),
			"encoding":          "application/json+gzip",
		},
		Payload: compressed,
		SHA256:  hex.EncodeToString(sum[:]),
	}
	if err := g.packs.Create(ctx, pack); err != nil {
		return nil, apperrors.MapError(err)
	}

	g.logger.Info("audit pack generated",
		zap.String("pack_id", pack.ID),
		zap.String("ticket_id", ticketID),
		zap.Int("payload_bytes", len(compressed)),
	)
	return pack, nil
}

// Get returns a stored pack.
func (g *Generator) Get(ctx context.Context, orgID, id string) (*domain.AuditPack, error) {
	pack, err := g.packs.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return pack, nil
}

// ListByTicket returns all packs generated for a ticket, newest first.
func (g *Generator) ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.AuditPack, error) {
	packs, err := g.packs.ListByTicket(ctx, orgID, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return packs, nil
}

// Verify recomputes the content hash of a stored pack.
func (g *Generator) Verify(pack *domain.AuditPack) bool {
	sum := sha256.Sum256(pack.Payload)
	return hex.EncodeToString(sum[:]) == pack.SHA256
}

func marshalGzip(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
