package autopost

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
	"github.com/simonvc/contaledger/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeLedger records postings without storage.
type fakeLedger struct {
	cfg      ledger.FiscalConfig
	posted   []ledger.Draft
	entries  []*ledger.JournalEntry
	resolved int
}

func (f *fakeLedger) FiscalConfig(context.Context) (ledger.FiscalConfig, error) { return f.cfg, nil }

func (f *fakeLedger) PostEntry(_ context.Context, d ledger.Draft) (*ledger.JournalEntry, error) {
	f.posted = append(f.posted, d)
	e := &ledger.JournalEntry{Number: int64(len(f.posted)), Origin: d.Origin, OriginID: d.OriginID}
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLedger) EntryByOrigin(_ context.Context, origin ledger.Origin, originID string) (*ledger.JournalEntry, error) {
	for _, e := range f.entries {
		if e.Origin == origin && e.OriginID == originID {
			found := *e
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ledger.ErrEntryNotFound, origin, originID)
}

func (f *fakeLedger) ResolveOrCreateSubsidiaryAccount(_ context.Context, partyID string, pt ledger.PartyType) (*ledger.Account, error) {
	f.resolved++
	return &ledger.Account{Code: "4300001", PartyID: partyID, PartyType: pt}, nil
}

func newService(t *testing.T) *accounting.Service {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	svc := accounting.New(st, accounting.Options{
		Tenant:  "test",
		Metrics: accounting.NewMetrics(prometheus.NewRegistry()),
		Logger:  log.Nop(),
		Clock:   func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func amounts(lines []ledger.JournalLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		side := "D"
		amt := l.Debit
		if l.Credit.IsPositive() {
			side, amt = "C", l.Credit
		}
		out[i] = side + " " + l.AccountCode + " " + amt.StringFixed(2)
	}
	return out
}

func TestSalesInvoiceSimple(t *testing.T) {
	svc := newService(t)
	gen := New(svc, log.Nop())
	ctx := context.Background()

	inv := SalesInvoice{
		ID:              "inv-1",
		Number:          "F2024-001",
		Date:            day("2024-05-10"),
		CustomerAccount: "430",
		Base:            dec("100.00"),
		Taxes:           []TaxLine{{Rate: dec("21"), Base: dec("100.00"), Amount: dec("21.00")}},
	}
	e, err := gen.PostSalesInvoice(ctx, inv)
	require.NoError(t, err)
	require.NotNil(t, e)

	assert.Equal(t, []string{"D 430 121.00", "C 700 100.00", "C 477 21.00"}, amounts(e.Lines))
	assert.True(t, e.Balanced)
	assert.Equal(t, ledger.OriginSalesInvoice, e.Origin)
	assert.Equal(t, "inv-1", e.OriginID)
	assert.Equal(t, "Factura emitida F2024-001", e.Description)

	again, err := gen.PostSalesInvoice(ctx, inv)
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, e.ID, again.ID)

	acct, err := svc.Balance(ctx, "430")
	require.NoError(t, err)
	assert.Equal(t, "121.00", acct.NetBalance.StringFixed(2))
}

func TestRepeatedDocumentIgnoresChangedDefaults(t *testing.T) {
	svc := newService(t)
	gen := New(svc, log.Nop())
	ctx := context.Background()
	require.NoError(t, svc.Store().UpsertParty(ctx, store.Party{Type: ledger.PartyCustomer, ID: "c-1", Name: "Cliente Uno"}))

	inv := SalesInvoice{ID: "inv-1", Number: "F1", Date: day("2024-05-10"), CustomerID: "c-1",
		Base: dec("100"), Taxes: []TaxLine{{Rate: dec("21"), Base: dec("100"), Amount: dec("21")}}}
	first, err := gen.PostSalesInvoice(ctx, inv)
	require.NoError(t, err)

	cfg, err := svc.FiscalConfig(ctx)
	require.NoError(t, err)
	cfg.Defaults.Sales = ""
	cfg.Defaults.VATOutputGeneric = ""
	require.NoError(t, svc.UpdateFiscalConfig(ctx, cfg))

	again, err := gen.PostSalesInvoice(ctx, inv)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.True(t, again.Existing)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, amounts(first.Lines), amounts(again.Lines))

	// Any other document now lacks a sales account.
	inv.ID = "inv-2"
	_, err = gen.PostSalesInvoice(ctx, inv)
	assert.ErrorIs(t, err, ledger.ErrMissingDefaultAccount)
}

func TestRepeatedDocumentSkipsAccountResolution(t *testing.T) {
	fake := &fakeLedger{cfg: ledger.DefaultFiscalConfig(2024)}
	gen := New(fake, log.Nop())
	ctx := context.Background()

	r := Receipt{ID: "rec-1", Date: day("2024-05-20"), CustomerID: "c-1", Amount: dec("10")}
	_, err := gen.PostReceipt(ctx, r)
	require.NoError(t, err)
	require.Equal(t, 1, fake.resolved)

	again, err := gen.PostReceipt(ctx, r)
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, 1, fake.resolved)
	assert.Len(t, fake.posted, 1)
}

func TestSalesInvoiceWithSubsidiaryAndWithholding(t *testing.T) {
	svc := newService(t)
	gen := New(svc, log.Nop())
	ctx := context.Background()
	require.NoError(t, svc.Store().UpsertParty(ctx, store.Party{Type: ledger.PartyCustomer, ID: "c-9", Name: "Estudio Pérez", TaxID: "12345678Z"}))

	due := day("2024-06-10")
	e, err := gen.PostSalesInvoice(ctx, SalesInvoice{
		ID:          "inv-2",
		Number:      "F2024-002",
		Date:        day("2024-05-11"),
		DueDate:     &due,
		CustomerID:  "c-9",
		Base:        dec("1000"),
		Taxes:       []TaxLine{{Rate: dec("21"), Base: dec("1000"), Amount: dec("210")}},
		Withholding: dec("150"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"D 4300001 1060.00", "D 473 150.00", "C 700 1000.00", "C 477 210.00"}, amounts(e.Lines))
	assert.Equal(t, "Estudio Pérez", e.Lines[0].PartyName)
	assert.Equal(t, "12345678Z", e.Lines[0].PartyTaxID)
	require.NotNil(t, e.Lines[0].DueDate)
	assert.Equal(t, due, *e.Lines[0].DueDate)
	assert.Equal(t, "F2024-002", e.Lines[0].DocumentRef)
}

func TestSalesInvoiceVATPerRate(t *testing.T) {
	cfg := ledger.DefaultFiscalConfig(2024)
	cfg.Defaults.VATOutput = map[string]string{"21": "4770021"}
	customer := partyRef{Code: "430"}

	d, err := buildSalesInvoice(cfg, SalesInvoice{
		ID: "x", Number: "1", Date: day("2024-01-01"),
		Base: dec("300"),
		Taxes: []TaxLine{
			{Rate: dec("21.00"), Base: dec("100"), Amount: dec("21")},
			{Rate: dec("10"), Base: dec("100"), Amount: dec("10")},
			{Rate: dec("21"), Base: dec("100"), Amount: dec("21")},
			{Rate: dec("0"), Base: dec("0"), Amount: dec("0")},
		},
	}, customer)
	require.NoError(t, err)
	require.Len(t, d.Lines, 4)
	assert.Equal(t, "430", d.Lines[0].AccountCode)
	assert.Equal(t, "352.00", d.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, "477", d.Lines[2].AccountCode)
	assert.Equal(t, "10.00", d.Lines[2].Credit.StringFixed(2))
	assert.Equal(t, "4770021", d.Lines[3].AccountCode)
	assert.Equal(t, "42.00", d.Lines[3].Credit.StringFixed(2))
	assert.True(t, ledger.ComputeTotals(d.Lines).Balanced)
}

func TestPurchaseInvoice(t *testing.T) {
	svc := newService(t)
	gen := New(svc, log.Nop())
	ctx := context.Background()
	require.NoError(t, svc.Store().UpsertParty(ctx, store.Party{Type: ledger.PartySupplier, ID: "s-1", Name: "Asesoría López"}))

	e, err := gen.PostPurchaseInvoice(ctx, PurchaseInvoice{
		ID:             "pinv-1",
		Number:         "A-77",
		Date:           day("2024-05-12"),
		SupplierID:     "s-1",
		ExpenseAccount: "623",
		Base:           dec("500"),
		Taxes:          []TaxLine{{Rate: dec("21"), Base: dec("500"), Amount: dec("105")}},
		Withholding:    dec("75"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"D 623 500.00", "D 472 105.00", "C 4000001 530.00", "C 4751 75.00"}, amounts(e.Lines))

	supplier, err := svc.Balance(ctx, "4000001")
	require.NoError(t, err)
	assert.Equal(t, "530.00", supplier.NetBalance.StringFixed(2))
}

func TestReceiptAndPaymentTreasuryChain(t *testing.T) {
	cfg := ledger.DefaultFiscalConfig(2024)
	cfg.Defaults.PaymentMethods = map[string]string{"card": "5720002"}

	tests := []struct {
		name     string
		specific string
		method   string
		want     string
	}{
		{"specific account wins", "5720009", "card", "5720009"},
		{"payment method default", "", "card", "5720002"},
		{"cash", "", MethodCash, "570"},
		{"bank fallback", "", "transfer", "572"},
		{"no method", "", "", "572"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := treasuryAccount(cfg, tc.specific, tc.method)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	cfg.Defaults.Bank = ""
	_, err := treasuryAccount(cfg, "", "transfer")
	var missing *ledger.MissingDefaultAccountError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "treasury", missing.Role)
}

func TestReceiptAndPaymentPosting(t *testing.T) {
	svc := newService(t)
	gen := New(svc, log.Nop())
	ctx := context.Background()

	_, err := gen.PostSalesInvoice(ctx, SalesInvoice{ID: "inv-1", Number: "F1", Date: day("2024-05-10"),
		CustomerAccount: "430", Base: dec("100"), Taxes: []TaxLine{{Rate: dec("21"), Base: dec("100"), Amount: dec("21")}}})
	require.NoError(t, err)

	r, err := gen.PostReceipt(ctx, Receipt{ID: "rec-1", Date: day("2024-05-20"), CustomerAccount: "430",
		Amount: dec("121"), Method: MethodCash, Reference: "F1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"D 570 121.00", "C 430 121.00"}, amounts(r.Lines))
	assert.Equal(t, ledger.OriginReceipt, r.Origin)
	assert.Equal(t, "Cobro F1", r.Description)

	p, err := gen.PostPayment(ctx, Payment{ID: "pay-1", Date: day("2024-05-21"), SupplierAccount: "400",
		Amount: dec("50")})
	require.NoError(t, err)
	assert.Equal(t, []string{"D 400 50.00", "C 572 50.00"}, amounts(p.Lines))
	assert.Equal(t, "Pago pay-1", p.Description)

	cust, err := svc.Balance(ctx, "430")
	require.NoError(t, err)
	assert.True(t, cust.NetBalance.IsZero())
}

func TestAutomaticPostingDisabled(t *testing.T) {
	fake := &fakeLedger{cfg: ledger.DefaultFiscalConfig(2024)}
	fake.cfg.AutoPosting = false
	gen := New(fake, log.Nop())

	e, err := gen.PostReceipt(context.Background(), Receipt{ID: "r", Date: day("2024-01-01"), CustomerID: "c", Amount: dec("1")})
	assert.NoError(t, err)
	assert.Nil(t, e)
	assert.Empty(t, fake.posted)
}

func TestUnbalancedGeneratedEntry(t *testing.T) {
	fake := &fakeLedger{cfg: ledger.DefaultFiscalConfig(2024)}
	gen := New(fake, log.Nop())

	_, err := gen.PostSalesInvoice(context.Background(), SalesInvoice{
		ID: "inv-bad", Number: "F9", Date: day("2024-01-01"), CustomerID: "c-1",
		Base:  dec("100"),
		Taxes: []TaxLine{{Rate: dec("21"), Base: dec("100"), Amount: dec("21")}},
		Total: dec("130"),
	})
	var unbalanced *ledger.UnbalancedGeneratedEntryError
	require.ErrorAs(t, err, &unbalanced)
	assert.Equal(t, "inv-bad", unbalanced.OriginID)
	assert.Equal(t, "9.00", unbalanced.Totals.Difference.StringFixed(2))
	assert.Empty(t, fake.posted)
}

func TestMissingDefaultAccount(t *testing.T) {
	fake := &fakeLedger{cfg: ledger.DefaultFiscalConfig(2024)}
	fake.cfg.Defaults.Sales = ""
	gen := New(fake, log.Nop())

	_, err := gen.PostSalesInvoice(context.Background(), SalesInvoice{
		ID: "inv", Number: "F1", Date: day("2024-01-01"), CustomerID: "c-1", Base: dec("100"),
	})
	assert.ErrorIs(t, err, ledger.ErrMissingDefaultAccount)

	fake.cfg = ledger.DefaultFiscalConfig(2024)
	fake.cfg.Defaults.WithholdingPayable = ""
	_, err = gen.PostPurchaseInvoice(context.Background(), PurchaseInvoice{
		ID: "p", Number: "A1", Date: day("2024-01-01"), SupplierID: "s-1", Base: dec("100"), Withholding: dec("15"),
	})
	var missing *ledger.MissingDefaultAccountError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "withholding_payable", missing.Role)
}

func TestPayloadValidation(t *testing.T) {
	gen := New(&fakeLedger{cfg: ledger.DefaultFiscalConfig(2024)}, log.Nop())
	ctx := context.Background()

	tests := []struct {
		name  string
		post  func() error
		field string
	}{
		{"missing id", func() error {
			_, err := gen.PostReceipt(ctx, Receipt{Date: day("2024-01-01"), CustomerID: "c", Amount: dec("1")})
			return err
		}, "Receipt.id"},
		{"no customer", func() error {
			_, err := gen.PostReceipt(ctx, Receipt{ID: "r", Date: day("2024-01-01"), Amount: dec("1")})
			return err
		}, "Receipt.customer_id"},
		{"zero amount", func() error {
			_, err := gen.PostPayment(ctx, Payment{ID: "p", Date: day("2024-01-01"), SupplierID: "s", Amount: decimal.Zero})
			return err
		}, "Payment.amount"},
		{"bad account code", func() error {
			_, err := gen.PostPayment(ctx, Payment{ID: "p", Date: day("2024-01-01"), SupplierID: "s", Amount: dec("1"), TreasuryAccount: "9x"})
			return err
		}, "Payment.treasury_account"},
		{"negative tax", func() error {
			_, err := gen.PostSalesInvoice(ctx, SalesInvoice{ID: "i", Number: "1", Date: day("2024-01-01"), CustomerID: "c",
				Base: dec("10"), Taxes: []TaxLine{{Rate: dec("21"), Amount: dec("-1")}}})
			return err
		}, "SalesInvoice.taxes[0].amount"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.post()
			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
