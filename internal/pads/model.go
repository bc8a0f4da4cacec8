package pads

import (
	"slices"
	"strings"
	"time"

	"github.com/angelmondragon/cuisync/pkg/enums"
	"github.com/shopspring/decimal"
)

// Pad is one active order for one table.
type Pad struct {
	ID              string           `json:"id"`
	Table           int              `json:"table"`
	Status          enums.PadStatus  `json:"status"`
	Items           []Item           `json:"items"`
	Covers          *int             `json:"covers,omitempty"`
	ClientName      string           `json:"clientName,omitempty"`
	TableNotes      string           `json:"tableNotes,omitempty"`
	PartialPayments []PartialPayment `json:"partialPayments"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	SentAt          *time.Time       `json:"sentAt,omitempty"`
	ReadyAt         *time.Time       `json:"readyAt,omitempty"`
	ServedAt        *time.Time       `json:"servedAt,omitempty"`
	PaidAt          *time.Time       `json:"paidAt,omitempty"`
}

// Item is one line of an order. Items are kept in serving order.
type Item struct {
	ID           string           `json:"id"`
	Dish         string           `json:"dish"`
	Qty          int              `json:"qty"`
	Course       enums.Course     `json:"course"`
	Note         string           `json:"note,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Category     string           `json:"category,omitempty"`
	HasAllergens bool             `json:"hasAllergens"`
	Modifiers    []string         `json:"modifiers,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// PartialPayment is one debit against a pad's balance.
type PartialPayment struct {
	ID           string              `json:"id"`
	Amount       decimal.Decimal     `json:"amount"`
	Method       enums.PaymentMethod `json:"method"`
	People       *int                `json:"people,omitempty"`
	Discount     decimal.Decimal     `json:"discount"`
	Tip          decimal.Decimal     `json:"tip"`
	CashTendered *decimal.Decimal    `json:"cashTendered,omitempty"`
	Change       *decimal.Decimal    `json:"change,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// LineTotal is price × qty, zero for unpriced items.
func (i Item) LineTotal() decimal.Decimal {
	if i.Price == nil {
		return decimal.Zero
	}
	return i.Price.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// ItemCount sums the quantities of every item on the pad.
func (p *Pad) ItemCount() int {
	total := 0
	for _, item := range p.Items {
		total += item.Qty
	}
	return total
}

// Clone returns a deep copy that shares no mutable state with p.
// Decimals are immutable values and are copied as-is.
func (p *Pad) Clone() *Pad {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Covers = cloneInt(p.Covers)
	dup.SentAt = cloneTime(p.SentAt)
	dup.ReadyAt = cloneTime(p.ReadyAt)
	dup.ServedAt = cloneTime(p.ServedAt)
	dup.PaidAt = cloneTime(p.PaidAt)

	if p.Items != nil {
		dup.Items = make([]Item, len(p.Items))
		for i, item := range p.Items {
			dup.Items[i] = item.clone()
		}
	}
	if p.PartialPayments != nil {
		dup.PartialPayments = make([]PartialPayment, len(p.PartialPayments))
		for i, payment := range p.PartialPayments {
			dup.PartialPayments[i] = payment.clone()
		}
	}
	return &dup
}

// ClonePads deep-copies a slice of pads. Empty input yields nil.
func ClonePads(pads []*Pad) []*Pad {
	if len(pads) == 0 {
		return nil
	}
	dup := make([]*Pad, len(pads))
	for i, pad := range pads {
		dup[i] = pad.Clone()
	}
	return dup
}

func (i Item) clone() Item {
	dup := i
	dup.Price = cloneDecimal(i.Price)
	if i.Modifiers != nil {
		dup.Modifiers = slices.Clone(i.Modifiers)
	}
	return dup
}

func (pp PartialPayment) clone() PartialPayment {
	dup := pp
	dup.People = cloneInt(pp.People)
	dup.CashTendered = cloneDecimal(pp.CashTendered)
	dup.Change = cloneDecimal(pp.Change)
	return dup
}

// NormalizeModifiers trims, de-duplicates and sorts a modifier set.
func NormalizeModifiers(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		m := strings.TrimSpace(raw)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}
