package payments

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/api/responses"
	"github.com/tkariuki-dev/sokohub-backend/api/validators"
	internalpayments "github.com/tkariuki-dev/sokohub-backend/internal/payments"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

type InitiateBody struct {
	AmountCents  int     `json:"amount_cents" validate:"required,gt=0"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
	Method       string  `json:"method" validate:"required"`
	OrderID      *string `json:"order_id" validate:"omitempty,uuid4"`
	EventID      *string `json:"event_id" validate:"omitempty,uuid4"`
	OrganizerID  *string `json:"organizer_id" validate:"omitempty,uuid4"`
	TicketTypeID *string `json:"ticket_type_id" validate:"omitempty,uuid4"`
	PayerContact string  `json:"payer_contact" validate:"required,min=7,max=32"`
	PayerEmail   string  `json:"payer_email" validate:"omitempty,email"`
	Narrative    string  `json:"narrative" validate:"omitempty,max=256"`
}

// Initiate creates a pending payment record and asks the provider to start
// collection against it.
func Initiate(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var body InitiateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.Method)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := internalpayments.InitiateInput{
			AmountCents:  body.AmountCents,
			Currency:     strings.ToUpper(strings.TrimSpace(body.Currency)),
			Method:       method,
			PayerContact: strings.TrimSpace(body.PayerContact),
			PayerEmail:   strings.TrimSpace(body.PayerEmail),
			Narrative:    validators.SanitizeString(body.Narrative, 256),
		}
		if input.OrderID, err = parseOptionalID(body.OrderID, "order id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.EventID, err = parseOptionalID(body.EventID, "event id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.OrganizerID, err = parseOptionalID(body.OrganizerID, "organizer id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.TicketTypeID, err = parseOptionalID(body.TicketTypeID, "ticket type id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payment, err := svc.Initiate(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, paymentView(payment))
	}
}

// Status resolves a payment by any correlation key, polling the provider
// when the local record is not yet terminal.
func Status(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		key := strings.TrimSpace(chi.URLParam(r, "correlationId"))
		if key == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "correlation id is required"))
			return
		}

		status, err := svc.GetPaymentStatus(ctx, key)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view := paymentView(status.Payment)
		if status.TicketID != nil {
			view["ticket_id"] = *status.TicketID
		}
		responses.WriteSuccess(w, view)
	}
}

func paymentView(p *models.Payment) map[string]any {
	view := map[string]any{
		"id":           p.ID,
		"invoice_id":   p.InvoiceID,
		"status":       p.Status,
		"method":       p.Method,
		"amount_cents": p.AmountCents,
		"currency":     p.Currency,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
	if p.ProviderAPIRef != nil {
		view["provider_api_ref"] = *p.ProviderAPIRef
	}
	if p.ProviderTxRef != nil {
		view["provider_tx_ref"] = *p.ProviderTxRef
	}
	if p.OrderID != nil {
		view["order_id"] = *p.OrderID
	}
	if p.EventID != nil {
		view["event_id"] = *p.EventID
	}
	if p.FailureReason != nil {
		view["failure_reason"] = *p.FailureReason
	}
	return view
}

func parseOptionalID(raw *string, label string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return &id, nil
}
