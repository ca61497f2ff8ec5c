package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/tkariuki-dev/sokohub-backend/api/responses"
	"github.com/tkariuki-dev/sokohub-backend/internal/payments"
	internalwebhooks "github.com/tkariuki-dev/sokohub-backend/internal/webhooks"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

// PaymentEventGate audits and screens a provider callback before handing it
// to the reconciler.
type PaymentEventGate interface {
	HandlePaymentEvent(ctx context.Context, input internalwebhooks.EventInput) (*payments.ReconcileOutcome, error)
}

type paymentEventBody struct {
	CorrelationID     string `json:"correlation_id"`
	InvoiceID         string `json:"invoice_id"`
	APIRef            string `json:"api_ref"`
	State             string `json:"state"`
	Status            string `json:"status"`
	ProviderReference string `json:"mpesa_reference"`
	FailedReason      string `json:"failed_reason"`
}

// PaymentWebhook ingests provider payment callbacks. The gate audits every
// delivery before any reconciliation runs, so a rejected payload still leaves
// a webhook log behind.
func PaymentWebhook(gate PaymentEventGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if gate == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook gate unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var body paymentEventBody
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &body); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload"))
				return
			}
		}

		rawStatus := body.State
		if rawStatus == "" {
			rawStatus = body.Status
		}

		outcome, err := gate.HandlePaymentEvent(ctx, internalwebhooks.EventInput{
			SourceAddress:  clientIP(r),
			CorrelationKey: correlationKey(body),
			RawStatus:      rawStatus,
			ProviderTxRef:  strings.TrimSpace(body.ProviderReference),
			FailureReason:  strings.TrimSpace(body.FailedReason),
			Payload:        json.RawMessage(payload),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status":  string(outcome.To),
			"applied": outcome.Applied,
		})
	}
}

func correlationKey(body paymentEventBody) string {
	for _, candidate := range []string{body.CorrelationID, body.InvoiceID, body.APIRef} {
		if key := strings.TrimSpace(candidate); key != "" {
			return key
		}
	}
	return ""
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		parts := strings.Split(header, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
