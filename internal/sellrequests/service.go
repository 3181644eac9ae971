package sellrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox/payloads"
)

const (
	maxTrackingNumberLength = 64
	maxCarrierLength        = 64
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs the device intake lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.SellRequest, error)
	Get(ctx context.Context, tenantID, id uuid.UUID, actor Actor) (*models.SellRequest, error)
	AddQuote(ctx context.Context, input AddQuoteInput) (*models.Quote, error)
	AcceptQuote(ctx context.Context, input AcceptQuoteInput) (*models.SellRequest, error)
	AddTrackingNumber(ctx context.Context, input TrackingInput) (*models.SellRequest, error)
	Transition(ctx context.Context, input TransitionInput) (*models.SellRequest, error)
	Cancel(ctx context.Context, input CancelInput) (*models.SellRequest, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sell requests repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.SellRequest, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	sr := &models.SellRequest{
		TenantID:    input.TenantID,
		UserID:      input.UserID,
		Brand:       strings.TrimSpace(input.Brand),
		ModelName:   strings.TrimSpace(input.ModelName),
		Storage:     trimOptional(input.Storage),
		Condition:   strings.TrimSpace(input.Condition),
		Description: trimOptional(input.Description),
		Status:      enums.SellRequestStatusPending,
	}
	var missing []string
	if sr.Brand == "" {
		missing = append(missing, "brand")
	}
	if sr.ModelName == "" {
		missing = append(missing, "model_name")
	}
	if sr.Condition == "" {
		missing = append(missing, "condition")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device details are incomplete").
			WithDetails(map[string][]string{"missing": missing})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, sr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sell request")
		}
		return s.emit(ctx, tx, sr, "", Actor{UserID: input.UserID, Role: enums.ActorRoleCustomer})
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, sr, "")
	return sr, nil
}

func (s *service) Get(ctx context.Context, tenantID, id uuid.UUID, actor Actor) (*models.SellRequest, error) {
	sr, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "load sell request")
	}
	if err := authorizeOwner(sr, actor); err != nil {
		return nil, err
	}
	return sr, nil
}

// AddQuote records an offer. The first quote moves PENDING to QUOTED; later
// quotes on a QUOTED request are appended without a status change.
func (s *service) AddQuote(ctx context.Context, input AddQuoteInput) (*models.Quote, error) {
	if !input.Actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	if input.Price <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote price must be positive")
	}

	quote := &models.Quote{SellRequestID: input.SellRequestID, Price: input.Price, Note: trimOptional(input.Note)}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sr, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.SellRequestID)
		if err != nil {
			return notFoundOr(err, "load sell request")
		}
		switch sr.Status {
		case enums.SellRequestStatusPending:
			if err := s.transition(ctx, tx, repo, sr, enums.SellRequestStatusQuoted, nil, input.Actor); err != nil {
				return err
			}
		case enums.SellRequestStatusQuoted:
		default:
			return Machine.Validate(sr.Status, enums.SellRequestStatusQuoted)
		}
		if err := repo.CreateQuote(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// AcceptQuote marks one quote accepted and fixes the final price together with
// the ACCEPTED transition.
func (s *service) AcceptQuote(ctx context.Context, input AcceptQuoteInput) (*models.SellRequest, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}

	var result *models.SellRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sr, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.SellRequestID)
		if err != nil {
			return notFoundOr(err, "load sell request")
		}
		if err := authorizeOwner(sr, input.Actor); err != nil {
			return err
		}
		if err := Machine.Validate(sr.Status, enums.SellRequestStatusAccepted); err != nil {
			return err
		}

		quote, err := repo.FindQuote(ctx, sr.ID, input.QuoteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found for this sell request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}
		ok, err := repo.AcceptQuote(ctx, quote.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept quote")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "quote already accepted")
		}

		price := quote.Price
		if err := s.transition(ctx, tx, repo, sr, enums.SellRequestStatusAccepted, map[string]any{"final_price": price}, input.Actor); err != nil {
			return err
		}
		for i := range sr.Quotes {
			if sr.Quotes[i].ID == quote.ID {
				sr.Quotes[i].Accepted = true
			}
		}
		result = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddTrackingNumber stores the parcel details and moves ACCEPTED to SHIPPING.
func (s *service) AddTrackingNumber(ctx context.Context, input TrackingInput) (*models.SellRequest, error) {
	carrier := strings.TrimSpace(input.Carrier)
	number := strings.TrimSpace(input.TrackingNumber)
	if number == "" || carrier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier and tracking number required")
	}
	if len(number) > maxTrackingNumberLength || len(carrier) > maxCarrierLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier or tracking number too long")
	}

	var result *models.SellRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sr, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.SellRequestID)
		if err != nil {
			return notFoundOr(err, "load sell request")
		}
		if err := authorizeOwner(sr, input.Actor); err != nil {
			return err
		}
		extra := map[string]any{"carrier": carrier, "tracking_number": number}
		if err := s.transition(ctx, tx, repo, sr, enums.SellRequestStatusShipping, extra, input.Actor); err != nil {
			return err
		}
		sr.Carrier = &carrier
		sr.TrackingNumber = &number
		result = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transition covers the operator moves after the device arrives.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.SellRequest, error) {
	if !input.Actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if input.To != enums.SellRequestStatusInspecting && input.To != enums.SellRequestStatusCompleted {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidState, "sell request cannot be moved to %s through a status update", input.To)
	}

	var result *models.SellRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sr, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.SellRequestID)
		if err != nil {
			return notFoundOr(err, "load sell request")
		}
		if err := s.transition(ctx, tx, repo, sr, input.To, nil, input.Actor); err != nil {
			return err
		}
		result = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.SellRequest, error) {
	var result *models.SellRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sr, err := repo.FindByIDForUpdate(ctx, input.TenantID, input.SellRequestID)
		if err != nil {
			return notFoundOr(err, "load sell request")
		}
		if err := authorizeOwner(sr, input.Actor); err != nil {
			return err
		}
		var extra map[string]any
		reason := strings.TrimSpace(input.Reason)
		if reason != "" {
			extra = map[string]any{"cancel_reason": reason}
		}
		if err := s.transition(ctx, tx, repo, sr, enums.SellRequestStatusCancelled, extra, input.Actor); err != nil {
			return err
		}
		if reason != "" {
			sr.CancelReason = &reason
		}
		result = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transition validates against Machine, writes status plus extra columns only
// while the row still holds the status read under lock, and emits the change.
func (s *service) transition(ctx context.Context, tx *gorm.DB, repo Repository, sr *models.SellRequest, to enums.SellRequestStatus, extra map[string]any, actor Actor) error {
	from := sr.Status
	updates, err := ApplyTransition(sr, to, s.now())
	if err != nil {
		return err
	}
	for column, value := range extra {
		updates[column] = value
	}
	ok, err := repo.UpdateStatus(ctx, sr.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sell request status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "sell request status changed concurrently")
	}
	if price, ok := extra["final_price"].(int64); ok {
		sr.FinalPrice = &price
	}
	if err := s.emit(ctx, tx, sr, from, actor); err != nil {
		return err
	}
	s.logTransition(ctx, sr, from)
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, sr *models.SellRequest, from enums.SellRequestStatus, actor Actor) error {
	now := s.now()
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSellRequestStatusChanged,
		AggregateType: enums.AggregateSellRequest,
		AggregateID:   sr.ID,
		Actor:         outbox.NewActor(actor.UserID, sr.TenantID, actor.Role),
		OccurredAt:    now,
		Data: payloads.SellRequestStatusChangedEvent{
			SellRequestID: sr.ID,
			TenantID:      sr.TenantID,
			UserID:        sr.UserID,
			From:          from,
			To:            sr.Status,
			FinalPrice:    sr.FinalPrice,
			ChangedAt:     now,
		},
	})
}

func (s *service) logTransition(ctx context.Context, sr *models.SellRequest, from enums.SellRequestStatus) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"sell_request_id": sr.ID.String(),
		"tenant_id":       sr.TenantID.String(),
		"from":            string(from),
		"to":              string(sr.Status),
	})
	s.logg.Info(ctx, "sell request status changed")
}

func authorizeOwner(sr *models.SellRequest, actor Actor) error {
	if actor.Role.IsStaff() || sr.UserID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "sell request not found")
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sell request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
