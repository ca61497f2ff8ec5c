package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/api/middleware"
	"github.com/tkariuki-dev/sokohub-backend/api/responses"
	"github.com/tkariuki-dev/sokohub-backend/api/validators"
	internalorders "github.com/tkariuki-dev/sokohub-backend/internal/orders"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type ItemBody struct {
	ProductID      *string `json:"product_id" validate:"omitempty,uuid4"`
	Name           string  `json:"name" validate:"required,min=1,max=128"`
	UnitPriceCents int     `json:"unit_price_cents" validate:"required,gt=0"`
	Qty            int     `json:"qty" validate:"required,gt=0"`
}

type CreateBody struct {
	BuyerID           string     `json:"buyer_id" validate:"required,uuid4"`
	SellerID          string     `json:"seller_id" validate:"required,uuid4"`
	ClientID          *string    `json:"client_id" validate:"omitempty,uuid4"`
	IsDebt            bool       `json:"is_debt"`
	IsSellerInitiated bool       `json:"is_seller_initiated"`
	Items             []ItemBody `json:"items" validate:"required,min=1,dive"`
}

type TransitionBody struct {
	Trigger string  `json:"trigger" validate:"required"`
	Note    *string `json:"note" validate:"omitempty,max=512"`
}

// Create opens an order in PENDING, or DEBT_PENDING when flagged as debt.
func Create(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var body CreateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		buyerID, err := uuid.Parse(body.BuyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer id"))
			return
		}
		sellerID, err := uuid.Parse(body.SellerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller id"))
			return
		}

		input := internalorders.CreateOrderInput{
			BuyerID:           buyerID,
			SellerID:          sellerID,
			IsDebt:            body.IsDebt,
			IsSellerInitiated: body.IsSellerInitiated,
		}
		if body.ClientID != nil {
			clientID, err := uuid.Parse(*body.ClientID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid client id"))
				return
			}
			input.ClientID = &clientID
		}
		for _, item := range body.Items {
			itemInput := internalorders.ItemInput{
				Name:           validators.SanitizeString(item.Name, 128),
				UnitPriceCents: item.UnitPriceCents,
				Qty:            item.Qty,
			}
			if item.ProductID != nil {
				productID, err := uuid.Parse(*item.ProductID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
					return
				}
				itemInput.ProductID = &productID
			}
			input.Items = append(input.Items, itemInput)
		}
		input.ActorID, input.ActorType = actorFromContext(r)

		order, err := svc.CreateOrder(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Transition submits one trigger against the order state machine. Invalid
// transitions come back as state conflicts and are audited server side.
func Transition(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body TransitionBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		trigger, err := enums.ParseOrderTrigger(body.Trigger)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid trigger"))
			return
		}

		if isPipelineTrigger(trigger) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "trigger is reserved for the payment pipeline"))
			return
		}

		actorID, actorType := actorFromContext(r)
		if trigger == enums.TriggerAdminForceComplete && actorType != enums.ActorTypeAdmin {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
			return
		}

		order, err := svc.Apply(ctx, internalorders.ApplyInput{
			OrderID:   orderID,
			Trigger:   trigger,
			ActorID:   actorID,
			ActorType: actorType,
			Note:      body.Note,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Detail returns the order with its item snapshots.
func Detail(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.GetOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// History returns the append-only transition log, oldest first.
func History(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		history, err := svc.History(ctx, orderID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// isPipelineTrigger reports triggers the reconciler submits from inside its
// own transaction. They describe payment facts, not caller intent, so they
// never arrive through this endpoint.
func isPipelineTrigger(trigger enums.OrderTrigger) bool {
	switch trigger {
	case enums.TriggerPaymentCompleted, enums.TriggerPaymentFailed, enums.TriggerDebtRecorded:
		return true
	default:
		return false
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func actorFromContext(r *http.Request) (*uuid.UUID, enums.ActorType) {
	actorType := enums.ActorTypeSystem
	if role, err := enums.ParseActorType(middleware.RoleFromContext(r.Context())); err == nil {
		actorType = role
	}
	var actorID *uuid.UUID
	if userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context())); err == nil {
		actorID = &userID
	}
	return actorID, actorType
}
