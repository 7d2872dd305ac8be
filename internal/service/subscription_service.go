package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/domain"
	"github.com/spec-kit/locate-service/internal/repository"
	apperrors "github.com/spec-kit/locate-service/pkg/util/errorutil"
)

// SubscriptionService manages alert subscriptions and the read-side alert
// feed for subscribers.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	subscribers   repository.SubscriberRepository
	alerts        repository.AlertRepository
	logger        *zap.Logger
}

// SubscriptionDependencies encapsulates repo requirements.
type SubscriptionDependencies struct {
	SubscriptionRepo repository.SubscriptionRepository
	SubscriberRepo   repository.SubscriberRepository
	AlertRepo        repository.AlertRepository
	Logger           *zap.Logger
}

// NewSubscriptionService builds the service.
func NewSubscriptionService(deps SubscriptionDependencies) *SubscriptionService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SubscriptionService{
		subscriptions: deps.SubscriptionRepo,
		subscribers:   deps.SubscriberRepo,
		alerts:        deps.AlertRepo,
		logger:        deps.Logger,
	}
}

// Save validates and upserts a subscription. One row exists per
// (subscriber, scope, project); saving again replaces the preferences.
func (s *SubscriptionService) Save(ctx context.Context, sub *domain.AlertSubscription) (*domain.AlertSubscription, error) {
	if sub.OrgID == "" || sub.SubscriberID == "" {
		return nil, apperrors.NewValidationError("org_id and subscriber_id are required", nil)
	}
	switch sub.Scope {
	case domain.ScopeOrg, domain.ScopeUser:
		sub.ProjectRef = nil
	case domain.ScopeProject:
		if sub.ProjectRef == nil || *sub.ProjectRef == "" {
			return nil, apperrors.NewValidationError("project scope requires project_ref", nil)
		}
	default:
		return nil, apperrors.NewValidationError("unknown scope", map[string]any{"scope": string(sub.Scope)})
	}
	for _, ch := range sub.Channels {
		if !validChannel(ch) {
			return nil, apperrors.NewValidationError("unknown channel", map[string]any{"channel": string(ch)})
		}
	}
	if sub.Quiet != nil {
		if err := sub.Quiet.Validate(); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
	}

	subscriber, err := s.subscribers.GetByID(ctx, sub.SubscriberID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if subscriber.OrgID != sub.OrgID {
		return nil, apperrors.NewForbidden("subscriber belongs to another org")
	}

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, apperrors.MapError(err)
	}
	return sub, nil
}

// List returns a subscriber's subscriptions.
func (s *SubscriptionService) List(ctx context.Context, orgID, subscriberID string) ([]domain.AlertSubscription, error) {
	subs, err := s.subscriptions.ListBySubscriber(ctx, orgID, subscriberID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return subs, nil
}

// Delete removes a subscription.
func (s *SubscriptionService) Delete(ctx context.Context, orgID, id string) error {
	return apperrors.MapError(s.subscriptions.Delete(ctx, orgID, id))
}

// Feed returns a subscriber's recent alerts, newest first.
func (s *SubscriptionService) Feed(ctx context.Context, orgID, subscriberID string, limit int) ([]domain.TicketAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	alerts, err := s.alerts.ListFeed(ctx, orgID, subscriberID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return alerts, nil
}

// TicketAlertHistory returns all alerts emitted for one ticket within an
// optional date range.
func (s *SubscriptionService) TicketAlertHistory(ctx context.Context, orgID, ticketID string, from, to *time.Time) ([]domain.TicketAlert, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperrors.NewInvalidDateRange("range end precedes range start")
	}
	alerts, err := s.alerts.ListByTicket(ctx, orgID, ticketID, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return alerts, nil
}

func validChannel(ch domain.Channel) bool {
	for _, known := range domain.AllChannels {
		if ch == known {
			return true
		}
	}
	return false
}
