package enums

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentMethod describes how a partial payment was tendered.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodCheque  PaymentMethod = "cheque"
	PaymentMethodVoucher PaymentMethod = "voucher"
	PaymentMethodOther   PaymentMethod = "other"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodCheque,
	PaymentMethodVoucher,
	PaymentMethodOther,
}

// spellings tablets have sent over time
var paymentMethodAliases = map[string]PaymentMethod{
	"check":       PaymentMethodCheque,
	"credit_card": PaymentMethodCard,
	"debit":       PaymentMethodCard,
	"gift_card":   PaymentMethodVoucher,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// OpensDrawer reports whether tendering with this method needs the cash drawer.
func (p PaymentMethod) OpensDrawer() bool {
	return p == PaymentMethodCash || p == PaymentMethodCheque
}

// ParsePaymentMethod accepts canonical names case-insensitively plus a few
// legacy aliases.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if alias, ok := paymentMethodAliases[normalized]; ok {
		return alias, nil
	}
	if method := PaymentMethod(normalized); method.IsValid() {
		return method, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// UnmarshalJSON folds aliases onto canonical names. Unknown values are kept
// verbatim so callers can report them with field details.
func (p *PaymentMethod) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if method, err := ParsePaymentMethod(raw); err == nil {
		*p = method
		return nil
	}
	*p = PaymentMethod(raw)
	return nil
}
