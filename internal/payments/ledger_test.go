package payments

import (
	"testing"

	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *pads.Store
	lifecycle *pads.Lifecycle
	ledger    *Ledger
}

func newFixture(t *testing.T, taxRate string) fixture {
	t.Helper()
	store := pads.NewStore()
	lc, err := pads.NewLifecycle(store, nil)
	require.NoError(t, err)
	ledger, err := NewLedger(lc, decimal.RequireFromString(taxRate), decimal.Zero)
	require.NoError(t, err)
	return fixture{store: store, lifecycle: lc, ledger: ledger}
}

func (f fixture) padWith(t *testing.T, table int, lines ...pads.ItemInput) *pads.Pad {
	t.Helper()
	pad, _, err := f.lifecycle.GetOrCreateOpenPad(table)
	require.NoError(t, err)
	for _, line := range lines {
		_, err := f.lifecycle.AddItem(pad, line)
		require.NoError(t, err)
	}
	return pad
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func moneyPtr(v string) *decimal.Decimal {
	d := money(v)
	return &d
}

func line(dish string, qty int, price string) pads.ItemInput {
	return pads.ItemInput{Dish: dish, Qty: qty, Price: moneyPtr(price)}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func TestTotalDueFormula(t *testing.T) {
	assertMoney(t, "30.00", TotalDue(money("30"), decimal.Zero, decimal.Zero, decimal.Zero))
	assertMoney(t, "29.70", TotalDue(money("30"), money("10"), money("3"), decimal.Zero))
	assertMoney(t, "32.00", TotalDue(money("30"), decimal.Zero, decimal.Zero, money("2")))
	assertMoney(t, "5.00", TotalDue(money("30"), money("20"), money("40"), money("5")), "discount larger than subtotal floors at zero")
}

func TestScenarioA_CashSettlesAndArchives(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 5, line("Steak", 2, "15.00"))
	assertMoney(t, "30.00", f.ledger.TotalDue(pad))

	require.NoError(t, f.lifecycle.Transition(pad, pads.TargetSend))
	require.NoError(t, f.lifecycle.Transition(pad, pads.TargetMarkReady))

	receipt, err := f.ledger.RecordPayment(pad, PaymentInput{
		Amount:       money("30.00"),
		Method:       enums.PaymentMethodCash,
		CashTendered: moneyPtr("30.00"),
	})
	require.NoError(t, err)
	assertMoney(t, "0.00", receipt.Change)
	assertMoney(t, "0.00", receipt.Remaining)
	assert.True(t, receipt.Settled)
	assert.Equal(t, 0, receipt.Index)

	assert.Zero(t, f.store.Len())
	history := f.store.History()
	require.Len(t, history, 1)
	assert.Equal(t, enums.PadStatusServed, history[0].Status)
	assert.NotNil(t, history[0].PaidAt)
}

func TestScenarioB_SplitByCoversThenTwoCardPayments(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 3, line("Menu", 2, "25.00"))
	covers := 2
	pad.Covers = &covers
	assertMoney(t, "50.00", f.ledger.TotalDue(pad))

	share, err := f.ledger.SplitByCovers(pad)
	require.NoError(t, err)
	assertMoney(t, "25.00", share)

	first, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: share, Method: enums.PaymentMethodCard})
	require.NoError(t, err)
	assert.False(t, first.Settled)
	assertMoney(t, "25.00", first.Remaining)
	assert.Equal(t, 1, f.store.Len())

	second, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: share, Method: enums.PaymentMethodCard})
	require.NoError(t, err)
	assert.True(t, second.Settled)
	assert.Zero(t, f.store.Len())
	assert.True(t, f.store.InHistory(pad.ID))
}

func TestScenarioD_OverAmountRejected(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 8, line("Vin", 1, "40.00"))

	due := f.ledger.TotalDue(pad)
	_, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: due.Add(money("10")), Method: enums.PaymentMethodCard})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOverAmount))
	assert.Empty(t, pad.PartialPayments)
	assert.Equal(t, enums.PadStatusOpen, pad.Status)
}

func TestEpsilonAbsorbsRounding(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 8, line("Café", 3, "3.33"))
	receipt, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: money("10.00"), Method: enums.PaymentMethodCard})
	require.NoError(t, err, "one cent over is within epsilon")
	assert.True(t, receipt.Settled)
}

func TestInsufficientCash(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 2, line("Pizza", 1, "12.00"))

	_, err := f.ledger.RecordPayment(pad, PaymentInput{
		Amount:       money("12.00"),
		Method:       enums.PaymentMethodCash,
		CashTendered: moneyPtr("10.00"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientAmount))
	assert.Empty(t, pad.PartialPayments)

	receipt, err := f.ledger.RecordPayment(pad, PaymentInput{
		Amount:       money("12.00"),
		Method:       enums.PaymentMethodCash,
		CashTendered: moneyPtr("20.00"),
	})
	require.NoError(t, err)
	assertMoney(t, "8.00", receipt.Change)
	require.NotNil(t, receipt.Payment.Change)
	assertMoney(t, "8.00", *receipt.Payment.Change)
}

func TestPaymentValidation(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 2, line("Pizza", 1, "12.00"))
	zero := 0

	cases := []PaymentInput{
		{Amount: decimal.Zero, Method: enums.PaymentMethodCard},
		{Amount: money("-1"), Method: enums.PaymentMethodCard},
		{Amount: money("1"), Method: "bitcoin"},
		{Amount: money("1"), Method: enums.PaymentMethodCard, People: &zero},
		{Amount: money("1"), Method: enums.PaymentMethodCard, Discount: money("-2")},
		{Amount: money("1"), Method: enums.PaymentMethodCard, Tip: money("-2")},
	}
	for _, input := range cases {
		_, err := f.ledger.RecordPayment(pad, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v: %v", input, err)
	}
	assert.Empty(t, pad.PartialPayments)
}

func TestDiscountAndTipOnlyOnFirstPayment(t *testing.T) {
	f := newFixture(t, "10")
	pad := f.padWith(t, 4, line("Plat", 2, "20.00"))
	assertMoney(t, "44.00", f.ledger.TotalDue(pad))

	first, err := f.ledger.RecordPayment(pad, PaymentInput{
		Amount:   money("10.00"),
		Method:   enums.PaymentMethodVoucher,
		Discount: money("10.00"),
		Tip:      money("3.00"),
	})
	require.NoError(t, err)
	// (40 - 10) * 1.10 + 3 = 36
	assertMoney(t, "36.00", f.ledger.TotalDue(pad))
	assertMoney(t, "26.00", first.Remaining)

	_, err = f.ledger.RecordPayment(pad, PaymentInput{Amount: money("5"), Method: enums.PaymentMethodCard, Tip: money("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Len(t, pad.PartialPayments, 1)

	_, err = f.ledger.RecordPayment(pad, PaymentInput{Amount: money("26.00"), Method: enums.PaymentMethodCheque})
	require.NoError(t, err)
	assert.True(t, f.store.InHistory(pad.ID))
}

func TestPaymentConservation(t *testing.T) {
	f := newFixture(t, "5.5")
	pad := f.padWith(t, 6,
		line("Entrée", 3, "7.30"),
		line("Plat", 2, "18.90"),
		line("Dessert", 1, "6.45"),
	)
	covers := 3
	pad.Covers = &covers

	share, err := f.ledger.SplitByPerson(pad)
	require.NoError(t, err)
	for i := 0; i < covers-1; i++ {
		_, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: share, Method: enums.PaymentMethodCard})
		require.NoError(t, err)
		assert.True(t, PaidAmount(pad).LessThanOrEqual(f.ledger.TotalDue(pad).Add(DefaultEpsilon)))
	}
	last, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: f.ledger.Remaining(pad), Method: enums.PaymentMethodCash})
	require.NoError(t, err)
	assert.True(t, last.Settled)

	require.True(t, f.store.InHistory(pad.ID))
	diff := PaidAmount(pad).Sub(f.ledger.TotalDue(pad)).Abs()
	assert.True(t, diff.LessThanOrEqual(DefaultEpsilon), "paid %s due %s", PaidAmount(pad), f.ledger.TotalDue(pad))
}

func TestPaymentOnSettledPadRejected(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 1, line("Eau", 1, "2.00"))
	_, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: money("2"), Method: enums.PaymentMethodCard})
	require.NoError(t, err)

	_, err = f.ledger.RecordPayment(pad, PaymentInput{Amount: money("1"), Method: enums.PaymentMethodCard})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestNewLedgerValidation(t *testing.T) {
	_, err := NewLedger(nil, decimal.Zero, decimal.Zero)
	assert.Error(t, err)

	lc, err := pads.NewLifecycle(pads.NewStore(), nil)
	require.NoError(t, err)
	_, err = NewLedger(lc, money("-1"), decimal.Zero)
	assert.Error(t, err)
}

func TestPaymentOnZeroBalanceRejected(t *testing.T) {
	f := newFixture(t, "10")
	pad := f.padWith(t, 4, pads.ItemInput{Dish: "Pain", Qty: 1})
	assertMoney(t, "0.00", f.ledger.TotalDue(pad))

	_, err := f.ledger.RecordPayment(pad, PaymentInput{Amount: money("0.01"), Method: enums.PaymentMethodCard})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOverAmount))
	assert.Empty(t, pad.PartialPayments)
	assert.Equal(t, enums.PadStatusOpen, pad.Status)
}

func TestSettleArchivesWithoutPayment(t *testing.T) {
	f := newFixture(t, "0")
	pad := f.padWith(t, 4, pads.ItemInput{Dish: "Pain", Qty: 2})

	idx, err := f.ledger.Settle(pad)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, enums.PadStatusServed, pad.Status)
	require.NotNil(t, pad.PaidAt)
	assert.Empty(t, pad.PartialPayments)
	assert.Zero(t, f.store.Len())
	assert.True(t, f.store.InHistory(pad.ID))

	_, err = f.ledger.Settle(pad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}
