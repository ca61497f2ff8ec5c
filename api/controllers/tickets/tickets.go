package tickets

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/api/responses"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

// TicketCanceller voids an issued ticket and reverses its balance credit.
type TicketCanceller interface {
	CancelTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error)
}

// Cancel voids a ticket. The row survives with status cancelled.
func Cancel(svc TicketCanceller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tickets service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "ticketId"))
		if raw == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "ticket id is required"))
			return
		}
		ticketID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ticket id"))
			return
		}

		ticket, err := svc.CancelTicket(ctx, ticketID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticket)
	}
}
