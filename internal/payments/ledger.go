package payments

import (
	"fmt"

	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
	// DefaultEpsilon absorbs rounding when comparing payments to the balance.
	DefaultEpsilon = decimal.New(1, -2)
)

// PaymentInput is one requested debit.
type PaymentInput struct {
	Amount       decimal.Decimal     `json:"amount"`
	Method       enums.PaymentMethod `json:"method"`
	People       *int                `json:"people,omitempty"`
	CashTendered *decimal.Decimal    `json:"cashTendered,omitempty"`
	Discount     decimal.Decimal     `json:"discount"`
	Tip          decimal.Decimal     `json:"tip"`
}

// Receipt describes an accepted payment.
type Receipt struct {
	Payment   pads.PartialPayment `json:"payment"`
	Change    decimal.Decimal     `json:"change"`
	Remaining decimal.Decimal     `json:"remaining"`
	Settled   bool                `json:"settled"`
	// Index is the pad's former position when Settled archived it, else -1.
	Index int `json:"-"`
}

// Ledger computes balances and accepts partial payments against pads.
type Ledger struct {
	lifecycle  *pads.Lifecycle
	taxRatePct decimal.Decimal
	epsilon    decimal.Decimal
}

// NewLedger wires a ledger. A zero epsilon falls back to DefaultEpsilon.
func NewLedger(lifecycle *pads.Lifecycle, taxRatePct, epsilon decimal.Decimal) (*Ledger, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("pad lifecycle required")
	}
	if taxRatePct.IsNegative() {
		return nil, fmt.Errorf("tax rate must be non-negative")
	}
	if epsilon.IsZero() {
		epsilon = DefaultEpsilon
	}
	return &Ledger{lifecycle: lifecycle, taxRatePct: taxRatePct, epsilon: epsilon}, nil
}

func (l *Ledger) TaxRatePct() decimal.Decimal {
	return l.taxRatePct
}

// TotalDue is max(0, subtotal − discount) × (1 + taxRatePct/100) + tip, rounded to cents.
func TotalDue(subtotal, taxRatePct, discount, tip decimal.Decimal) decimal.Decimal {
	base := decimal.Max(decimal.Zero, subtotal.Sub(discount))
	taxed := base.Mul(decimal.NewFromInt(1).Add(taxRatePct.Div(hundred)))
	return taxed.Add(tip).Round(moneyPlaces)
}

// Subtotal sums price × qty over every item.
func Subtotal(pad *pads.Pad) decimal.Decimal {
	total := decimal.Zero
	for _, item := range pad.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// SubtotalFor sums price × qty over the selected items. Unknown ids are rejected.
func SubtotalFor(pad *pads.Pad, itemIDs []string) (decimal.Decimal, error) {
	if len(itemIDs) == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	byID := make(map[string]pads.Item, len(pad.Items))
	for _, item := range pad.Items {
		byID[item.ID] = item
	}
	total := decimal.Zero
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		item, ok := byID[id]
		if !ok {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown item").
				WithDetails(map[string]string{"itemId": id})
		}
		total = total.Add(item.LineTotal())
	}
	return total, nil
}

// PaidAmount sums every partial payment.
func PaidAmount(pad *pads.Pad) decimal.Decimal {
	total := decimal.Zero
	for _, payment := range pad.PartialPayments {
		total = total.Add(payment.Amount)
	}
	return total
}

// Adjustments returns the discount and tip carried by the pad's first payment.
func Adjustments(pad *pads.Pad) (discount, tip decimal.Decimal) {
	if len(pad.PartialPayments) == 0 {
		return decimal.Zero, decimal.Zero
	}
	first := pad.PartialPayments[0]
	return first.Discount, first.Tip
}

// TotalDue computes the pad's balance using its recorded discount and tip.
func (l *Ledger) TotalDue(pad *pads.Pad) decimal.Decimal {
	discount, tip := Adjustments(pad)
	return TotalDue(Subtotal(pad), l.taxRatePct, discount, tip)
}

// Remaining is what is still owed, never negative.
func (l *Ledger) Remaining(pad *pads.Pad) decimal.Decimal {
	return decimal.Max(decimal.Zero, l.TotalDue(pad).Sub(PaidAmount(pad))).Round(moneyPlaces)
}

// RecordPayment validates input against the pad's balance and appends it.
// When the pad is covered within epsilon it is settled and archived.
func (l *Ledger) RecordPayment(pad *pads.Pad, input PaymentInput) (*Receipt, error) {
	if pad == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pad not found")
	}
	if err := l.validate(pad, input); err != nil {
		return nil, err
	}

	amount := input.Amount.Round(moneyPlaces)
	discount, tip := input.Discount, input.Tip
	if len(pad.PartialPayments) > 0 {
		discount, tip = Adjustments(pad)
	}
	due := TotalDue(Subtotal(pad), l.taxRatePct, discount, tip)
	paid := PaidAmount(pad)

	if !due.Sub(paid).IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeOverAmount, "nothing is owed on this pad").
			WithDetails(map[string]string{
				"amount":    amount.StringFixed(moneyPlaces),
				"remaining": "0.00",
			})
	}
	if amount.GreaterThan(due.Sub(paid).Add(l.epsilon)) {
		return nil, pkgerrors.New(pkgerrors.CodeOverAmount, "payment exceeds remaining balance").
			WithDetails(map[string]string{
				"amount":    amount.StringFixed(moneyPlaces),
				"remaining": decimal.Max(decimal.Zero, due.Sub(paid)).StringFixed(moneyPlaces),
			})
	}

	var tendered, change *decimal.Decimal
	if input.Method == enums.PaymentMethodCash {
		t := amount
		if input.CashTendered != nil {
			t = input.CashTendered.Round(moneyPlaces)
		}
		if t.LessThan(amount) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientAmount, "cash tendered is less than the amount").
				WithDetails(map[string]string{
					"amount":   amount.StringFixed(moneyPlaces),
					"tendered": t.StringFixed(moneyPlaces),
				})
		}
		c := t.Sub(amount)
		tendered, change = &t, &c
	}

	now := l.lifecycle.Now()
	payment := pads.PartialPayment{
		ID:           uuid.NewString(),
		Amount:       amount,
		Method:       input.Method,
		People:       input.People,
		CashTendered: tendered,
		Change:       change,
		CreatedAt:    now,
	}
	if len(pad.PartialPayments) == 0 {
		payment.Discount = discount.Round(moneyPlaces)
		payment.Tip = tip.Round(moneyPlaces)
	}
	pad.PartialPayments = append(pad.PartialPayments, payment)
	pad.UpdatedAt = now

	receipt := &Receipt{
		Payment:   payment,
		Change:    decimal.Zero,
		Remaining: l.Remaining(pad),
		Index:     -1,
	}
	if change != nil {
		receipt.Change = *change
	}

	if PaidAmount(pad).GreaterThanOrEqual(l.TotalDue(pad).Sub(l.epsilon)) {
		idx, err := l.Settle(pad)
		if err != nil {
			return nil, err
		}
		receipt.Settled = true
		receipt.Index = idx
	}
	return receipt, nil
}

// Settle closes pad as paid whatever its balance, stamping paidAt, and
// archives it. It returns the pad's former index.
func (l *Ledger) Settle(pad *pads.Pad) (int, error) {
	if err := l.lifecycle.Transition(pad, pads.TargetSettle); err != nil {
		return -1, err
	}
	return l.lifecycle.Archive(pad)
}

func (l *Ledger) validate(pad *pads.Pad, input PaymentInput) error {
	details := map[string]string{}
	if !input.Amount.IsPositive() {
		details["amount"] = "must be greater than 0"
	}
	if !input.Method.IsValid() {
		details["method"] = fmt.Sprintf("unknown payment method %q", input.Method)
	}
	if input.People != nil && *input.People <= 0 {
		details["people"] = "must be at least 1"
	}
	if input.Discount.IsNegative() {
		details["discount"] = "must be at least 0"
	}
	if input.Tip.IsNegative() {
		details["tip"] = "must be at least 0"
	}
	if len(pad.PartialPayments) > 0 {
		if !input.Discount.IsZero() {
			details["discount"] = "only allowed on the first payment"
		}
		if !input.Tip.IsZero() {
			details["tip"] = "only allowed on the first payment"
		}
	}
	if input.CashTendered != nil && input.CashTendered.IsNegative() {
		details["cashTendered"] = "must be at least 0"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	if pad.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "pad is already settled").
			WithDetails(map[string]any{"from": pad.Status, "target": pads.TargetSettle})
	}
	return nil
}
