package autopost

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
)

const MethodCash = "cash"

type Receipt struct {
	ID              string          `json:"id" validate:"required"`
	Date            time.Time       `json:"date" validate:"required"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	CustomerID      string          `json:"customer_id" validate:"required_without=CustomerAccount"`
	CustomerAccount string          `json:"customer_account,omitempty" validate:"omitempty,account_code"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Method          string          `json:"method,omitempty"`
	TreasuryAccount string          `json:"treasury_account,omitempty" validate:"omitempty,account_code"`
	CreatedBy       string          `json:"created_by,omitempty"`
}

type Payment struct {
	ID              string          `json:"id" validate:"required"`
	Date            time.Time       `json:"date" validate:"required"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	SupplierID      string          `json:"supplier_id" validate:"required_without=SupplierAccount"`
	SupplierAccount string          `json:"supplier_account,omitempty" validate:"omitempty,account_code"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Method          string          `json:"method,omitempty"`
	TreasuryAccount string          `json:"treasury_account,omitempty" validate:"omitempty,account_code"`
	CreatedBy       string          `json:"created_by,omitempty"`
}

// PostReceipt books a collection from a customer into treasury.
func (g *Generators) PostReceipt(ctx context.Context, r Receipt) (*ledger.JournalEntry, error) {
	return g.run(ctx, r, ledger.OriginReceipt, r.ID, func(cfg ledger.FiscalConfig) (ledger.Draft, error) {
		customer, err := g.resolveParty(ctx, r.CustomerAccount, r.CustomerID, ledger.PartyCustomer)
		if err != nil {
			return ledger.Draft{}, err
		}
		return buildReceipt(cfg, r, customer)
	})
}

// PostPayment books a payment to a supplier out of treasury.
func (g *Generators) PostPayment(ctx context.Context, p Payment) (*ledger.JournalEntry, error) {
	return g.run(ctx, p, ledger.OriginPayment, p.ID, func(cfg ledger.FiscalConfig) (ledger.Draft, error) {
		supplier, err := g.resolveParty(ctx, p.SupplierAccount, p.SupplierID, ledger.PartySupplier)
		if err != nil {
			return ledger.Draft{}, err
		}
		return buildPayment(cfg, p, supplier)
	})
}

func buildReceipt(cfg ledger.FiscalConfig, r Receipt, customer partyRef) (ledger.Draft, error) {
	treasury, err := treasuryAccount(cfg, r.TreasuryAccount, r.Method)
	if err != nil {
		return ledger.Draft{}, err
	}
	return ledger.Draft{
		Date:        r.Date,
		Description: describe(r.Description, "Cobro %s", firstNonEmpty(r.Reference, r.ID)),
		Lines: []ledger.DraftLine{
			debit(treasury, r.Amount),
			customer.apply(credit(customer.Code, r.Amount), r.Reference),
		},
		Origin:    ledger.OriginReceipt,
		OriginID:  r.ID,
		Locked:    true,
		CreatedBy: r.CreatedBy,
	}, nil
}

func buildPayment(cfg ledger.FiscalConfig, p Payment, supplier partyRef) (ledger.Draft, error) {
	treasury, err := treasuryAccount(cfg, p.TreasuryAccount, p.Method)
	if err != nil {
		return ledger.Draft{}, err
	}
	return ledger.Draft{
		Date:        p.Date,
		Description: describe(p.Description, "Pago %s", firstNonEmpty(p.Reference, p.ID)),
		Lines: []ledger.DraftLine{
			supplier.apply(debit(supplier.Code, p.Amount), p.Reference),
			credit(treasury, p.Amount),
		},
		Origin:    ledger.OriginPayment,
		OriginID:  p.ID,
		Locked:    true,
		CreatedBy: p.CreatedBy,
	}, nil
}

// treasuryAccount resolves the cash or bank account: the document's own
// account, then the payment method default, then cash for cash payments,
// then the default bank.
func treasuryAccount(cfg ledger.FiscalConfig, specific, method string) (string, error) {
	if specific != "" {
		return specific, nil
	}
	if code := cfg.Defaults.PaymentMethods[method]; method != "" && code != "" {
		return code, nil
	}
	if method == MethodCash && cfg.Defaults.Cash != "" {
		return cfg.Defaults.Cash, nil
	}
	return required(cfg.Defaults.Bank, "treasury")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
