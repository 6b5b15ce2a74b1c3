package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/access"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

// TripView is a trip as one actor is allowed to see it
type TripView struct {
	Trip          *entity.TripRequest      `json:"trip"`
	Capabilities  access.Capabilities      `json:"capabilities"`
	CostsRedacted bool                     `json:"costs_redacted"`
	Attachments   []*entity.AttachmentLink `json:"attachments,omitempty"`
}

// TripQueryService is the read side of the workflow
type TripQueryService interface {
	GetTrip(ctx context.Context, actorID string, tripID int64) (*TripView, error)
	ListMessages(ctx context.Context, actorID string, tripID int64) ([]*entity.Message, error)
	ListHistory(ctx context.Context, actorID string, tripID int64) ([]*entity.TransitionHistory, error)
	// CostReport returns the unredacted trip for actors that can see costs
	CostReport(ctx context.Context, actorID string, tripID int64) (*entity.TripRequest, error)
}

type tripQueryService struct {
	trips       port.TripRepository
	messages    port.MessageRepository
	history     port.HistoryRepository
	attachments port.AttachmentStore
	users       port.UserDirectory
	roles       *access.RoleResolver
	logger      Logger
}

// NewTripQueryService creates a new TripQueryService
func NewTripQueryService(
	trips port.TripRepository,
	messages port.MessageRepository,
	history port.HistoryRepository,
	attachments port.AttachmentStore,
	users port.UserDirectory,
	logger Logger,
) TripQueryService {
	return &tripQueryService{
		trips:       trips,
		messages:    messages,
		history:     history,
		attachments: attachments,
		users:       users,
		roles:       access.NewRoleResolver(),
		logger:      logger,
	}
}

// GetTrip returns the trip with cost fields hidden from actors that cannot see costs
func (s *tripQueryService) GetTrip(ctx context.Context, actorID string, tripID int64) (*TripView, error) {
	trip, caps, err := s.load(ctx, actorID, tripID)
	if err != nil {
		return nil, err
	}

	view := &TripView{Trip: trip, Capabilities: caps}
	if !caps.CanSeeCosts {
		view.Trip = RedactCosts(trip, caps.Employee)
		view.CostsRedacted = true
	}

	if s.attachments != nil {
		links, err := s.attachments.ListByTrip(ctx, tripID)
		if err != nil {
			s.logger.Error("Failed to list attachments", "trip_id", tripID, "error", err)
		} else {
			view.Attachments = links
		}
	}

	return view, nil
}

// ListMessages returns public messages and the restricted ones addressed to the actor
func (s *tripQueryService) ListMessages(ctx context.Context, actorID string, tripID int64) ([]*entity.Message, error) {
	if _, _, err := s.load(ctx, actorID, tripID); err != nil {
		return nil, err
	}

	all, err := s.messages.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	visible := make([]*entity.Message, 0, len(all))
	for _, msg := range all {
		if msg.VisibleTo(actorID) {
			visible = append(visible, msg)
		}
	}
	return visible, nil
}

// ListHistory returns the audit trail; notes are dropped for actors that cannot see costs
func (s *tripQueryService) ListHistory(ctx context.Context, actorID string, tripID int64) ([]*entity.TransitionHistory, error) {
	_, caps, err := s.load(ctx, actorID, tripID)
	if err != nil {
		return nil, err
	}

	records, err := s.history.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if caps.CanSeeCosts {
		return records, nil
	}

	out := make([]*entity.TransitionHistory, len(records))
	for i, h := range records {
		c := *h
		c.Note = ""
		out[i] = &c
	}
	return out, nil
}

// CostReport returns the full trip when the actor can see costs
func (s *tripQueryService) CostReport(ctx context.Context, actorID string, tripID int64) (*entity.TripRequest, error) {
	trip, caps, err := s.load(ctx, actorID, tripID)
	if err != nil {
		return nil, err
	}
	if !caps.CanSeeCosts {
		return nil, workflow.PermissionDenied("", "actor cannot see trip costs")
	}
	return trip, nil
}

func (s *tripQueryService) load(ctx context.Context, actorID string, tripID int64) (*entity.TripRequest, access.Capabilities, error) {
	user, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, port.ErrUserNotFound) {
			return nil, access.Capabilities{}, workflow.PermissionDenied("", "unknown actor")
		}
		return nil, access.Capabilities{}, fmt.Errorf("resolve actor: %w", err)
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, access.Capabilities{}, err
	}

	return trip, s.roles.Resolve(user, trip, false), nil
}

// RedactCosts returns a copy of trip without budget and cost fields.
// The requester keeps their own expense total.
func RedactCosts(trip *entity.TripRequest, keepOwnExpenses bool) *entity.TripRequest {
	c := trip.Clone()

	c.ApprovedBudget = decimal.Zero
	c.InternalNotes = ""
	c.ManualPlannedCost = decimal.Zero
	c.PlannedCost = decimal.Zero
	c.FinalTotalCost = nil
	c.BudgetStatus = ""
	c.BudgetDifference = decimal.Zero
	for i := range c.LineItems {
		c.LineItems[i].PlannedCost = decimal.Zero
	}
	if !keepOwnExpenses {
		c.ActualExpenseTotal = decimal.Zero
	}

	return c
}
