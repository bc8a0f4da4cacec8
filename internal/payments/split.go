package payments

import (
	"github.com/angelmondragon/cuisync/internal/pads"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/shopspring/decimal"
)

// Split helpers only suggest an amount. The debit still goes through RecordPayment.

// SplitByPerson divides the remaining balance by the pad's covers.
func (l *Ledger) SplitByPerson(pad *pads.Pad) (decimal.Decimal, error) {
	if pad.Covers == nil || *pad.Covers <= 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "covers are required to split by person").
			WithDetails(map[string]string{"covers": "is required"})
	}
	return l.Remaining(pad).Div(decimal.NewFromInt(int64(*pad.Covers))).Round(moneyPlaces), nil
}

// SplitByCovers is SplitByPerson under the name the payment panel uses.
func (l *Ledger) SplitByCovers(pad *pads.Pad) (decimal.Decimal, error) {
	return l.SplitByPerson(pad)
}

// SplitCustom passes a caller-chosen amount through, rounded to cents.
func SplitCustom(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than 0").
			WithDetails(map[string]string{"amount": "must be greater than 0"})
	}
	return amount.Round(moneyPlaces), nil
}

// SplitByItems suggests the taxed total of the selected items, capped at the remaining balance.
func (l *Ledger) SplitByItems(pad *pads.Pad, itemIDs []string) (decimal.Decimal, error) {
	subtotal, err := SubtotalFor(pad, itemIDs)
	if err != nil {
		return decimal.Zero, err
	}
	due := TotalDue(subtotal, l.taxRatePct, decimal.Zero, decimal.Zero)
	return decimal.Min(due, l.Remaining(pad)), nil
}

// Summary is the payment panel read model for one pad.
type Summary struct {
	PadID      string                `json:"padId"`
	Table      int                   `json:"table"`
	Subtotal   decimal.Decimal       `json:"subtotal"`
	Discount   decimal.Decimal       `json:"discount"`
	Tip        decimal.Decimal       `json:"tip"`
	TaxRatePct decimal.Decimal       `json:"taxRatePct"`
	TotalDue   decimal.Decimal       `json:"totalDue"`
	Paid       decimal.Decimal       `json:"paid"`
	Remaining  decimal.Decimal       `json:"remaining"`
	PerPerson  *decimal.Decimal      `json:"perPerson,omitempty"`
	Payments   []pads.PartialPayment `json:"payments"`
}

// Summarize builds the payment panel for pad.
func (l *Ledger) Summarize(pad *pads.Pad) Summary {
	discount, tip := Adjustments(pad)
	s := Summary{
		PadID:      pad.ID,
		Table:      pad.Table,
		Subtotal:   Subtotal(pad).Round(moneyPlaces),
		Discount:   discount,
		Tip:        tip,
		TaxRatePct: l.taxRatePct,
		TotalDue:   l.TotalDue(pad),
		Paid:       PaidAmount(pad).Round(moneyPlaces),
		Remaining:  l.Remaining(pad),
		Payments:   pad.Clone().PartialPayments,
	}
	if perPerson, err := l.SplitByPerson(pad); err == nil {
		s.PerPerson = &perPerson
	}
	return s
}
