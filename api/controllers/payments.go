package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cuisync/api/responses"
	"github.com/angelmondragon/cuisync/api/validators"
	"github.com/angelmondragon/cuisync/internal/engine"
	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/internal/payments"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

type PaymentService interface {
	PaymentPanel(padID string) (payments.Summary, error)
	SplitByItems(padID string, itemIDs []string) (decimal.Decimal, error)
	RecordPayment(ctx context.Context, padID string, input payments.PaymentInput) (*engine.PaymentOutcome, error)
	MarkPadPaid(ctx context.Context, padID string) (*pads.Pad, error)
}

type splitByItemsRequest struct {
	ItemIDs []string `json:"itemIds" validate:"required,min=1,dive,required"`
}

type splitResponse struct {
	PadID  string          `json:"padId"`
	Amount decimal.Decimal `json:"amount"`
}

func PaymentPanel(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID, err := validators.PathID(r, "padId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.PaymentPanel(padID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// SplitByItems suggests the amount owed for a subset of the pad's items.
func SplitByItems(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID, err := validators.PathID(r, "padId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req splitByItemsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := svc.SplitByItems(padID, req.ItemIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, splitResponse{PadID: padID, Amount: amount})
	}
}

// RecordPayment debits a partial payment. A payment that covers the balance
// settles and archives the pad.
func RecordPayment(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID, err := validators.PathID(r, "padId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input payments.PaymentInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithPadID(r.Context(), padID)
		outcome, err := svc.RecordPayment(ctx, padID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, outcome)
	}
}

// MarkPadPaid settles a pad without recording a payment, e.g. a comped or
// unpriced bill.
func MarkPadPaid(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return padAction(logg, svc.MarkPadPaid)
}
