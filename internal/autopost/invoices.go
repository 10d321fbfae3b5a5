package autopost

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
)

// TaxLine is the VAT of one rate on an invoice.
type TaxLine struct {
	Rate   decimal.Decimal `json:"rate" validate:"gte=0"`
	Base   decimal.Decimal `json:"base" validate:"gte=0"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

type SalesInvoice struct {
	ID              string          `json:"id" validate:"required"`
	Number          string          `json:"number" validate:"required"`
	Date            time.Time       `json:"date" validate:"required"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Description     string          `json:"description,omitempty"`
	CustomerID      string          `json:"customer_id" validate:"required_without=CustomerAccount"`
	CustomerAccount string          `json:"customer_account,omitempty" validate:"omitempty,account_code"`
	RevenueAccount  string          `json:"revenue_account,omitempty" validate:"omitempty,account_code"`
	Base            decimal.Decimal `json:"base" validate:"gt=0"`
	Taxes           []TaxLine       `json:"taxes" validate:"dive"`
	Withholding     decimal.Decimal `json:"withholding" validate:"gte=0"`
	// Total is the invoice total before withholding. Zero means base plus
	// taxes.
	Total     decimal.Decimal `json:"total" validate:"gte=0"`
	CreatedBy string          `json:"created_by,omitempty"`
}

type PurchaseInvoice struct {
	ID              string          `json:"id" validate:"required"`
	Number          string          `json:"number" validate:"required"`
	Date            time.Time       `json:"date" validate:"required"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Description     string          `json:"description,omitempty"`
	SupplierID      string          `json:"supplier_id" validate:"required_without=SupplierAccount"`
	SupplierAccount string          `json:"supplier_account,omitempty" validate:"omitempty,account_code"`
	ExpenseAccount  string          `json:"expense_account,omitempty" validate:"omitempty,account_code"`
	Base            decimal.Decimal `json:"base" validate:"gt=0"`
	Taxes           []TaxLine       `json:"taxes" validate:"dive"`
	Withholding     decimal.Decimal `json:"withholding" validate:"gte=0"`
	Total           decimal.Decimal `json:"total" validate:"gte=0"`
	CreatedBy       string          `json:"created_by,omitempty"`
}

// PostSalesInvoice books an issued invoice: the customer for the total net
// of withholding, withholding receivable, revenue for the base and output
// VAT per rate.
func (g *Generators) PostSalesInvoice(ctx context.Context, inv SalesInvoice) (*ledger.JournalEntry, error) {
	return g.run(ctx, inv, ledger.OriginSalesInvoice, inv.ID, func(cfg ledger.FiscalConfig) (ledger.Draft, error) {
		customer, err := g.resolveParty(ctx, inv.CustomerAccount, inv.CustomerID, ledger.PartyCustomer)
		if err != nil {
			return ledger.Draft{}, err
		}
		return buildSalesInvoice(cfg, inv, customer)
	})
}

// PostPurchaseInvoice is the mirror of PostSalesInvoice for received
// invoices.
func (g *Generators) PostPurchaseInvoice(ctx context.Context, inv PurchaseInvoice) (*ledger.JournalEntry, error) {
	return g.run(ctx, inv, ledger.OriginPurchaseInvoice, inv.ID, func(cfg ledger.FiscalConfig) (ledger.Draft, error) {
		supplier, err := g.resolveParty(ctx, inv.SupplierAccount, inv.SupplierID, ledger.PartySupplier)
		if err != nil {
			return ledger.Draft{}, err
		}
		return buildPurchaseInvoice(cfg, inv, supplier)
	})
}

func buildSalesInvoice(cfg ledger.FiscalConfig, inv SalesInvoice, customer partyRef) (ledger.Draft, error) {
	revenue := inv.RevenueAccount
	if revenue == "" {
		revenue = cfg.Defaults.Sales
	}
	revenue, err := required(revenue, "sales")
	if err != nil {
		return ledger.Draft{}, err
	}

	vatLines, vatTotal, err := taxLines(inv.Taxes, cfg.OutputVATAccount, credit)
	if err != nil {
		return ledger.Draft{}, err
	}
	total := invoiceTotal(inv.Total, inv.Base, vatTotal)

	custLine := customer.apply(debit(customer.Code, total.Sub(inv.Withholding)), inv.Number)
	custLine.DueDate = inv.DueDate
	lines := []ledger.DraftLine{custLine}
	if inv.Withholding.IsPositive() {
		wh, err := required(cfg.Defaults.WithholdingReceivable, "withholding_receivable")
		if err != nil {
			return ledger.Draft{}, err
		}
		lines = append(lines, customer.apply(debit(wh, inv.Withholding), inv.Number))
	}
	lines = append(lines, credit(revenue, inv.Base))
	lines = append(lines, vatLines...)

	return ledger.Draft{
		Date:        inv.Date,
		Description: describe(inv.Description, "Factura emitida %s", inv.Number),
		Lines:       lines,
		Origin:      ledger.OriginSalesInvoice,
		OriginID:    inv.ID,
		Locked:      true,
		CreatedBy:   inv.CreatedBy,
	}, nil
}

func buildPurchaseInvoice(cfg ledger.FiscalConfig, inv PurchaseInvoice, supplier partyRef) (ledger.Draft, error) {
	expense := inv.ExpenseAccount
	if expense == "" {
		expense = cfg.Defaults.Purchases
	}
	expense, err := required(expense, "purchases")
	if err != nil {
		return ledger.Draft{}, err
	}

	vatLines, vatTotal, err := taxLines(inv.Taxes, cfg.InputVATAccount, debit)
	if err != nil {
		return ledger.Draft{}, err
	}
	total := invoiceTotal(inv.Total, inv.Base, vatTotal)

	lines := []ledger.DraftLine{debit(expense, inv.Base)}
	lines = append(lines, vatLines...)
	supLine := supplier.apply(credit(supplier.Code, total.Sub(inv.Withholding)), inv.Number)
	supLine.DueDate = inv.DueDate
	lines = append(lines, supLine)
	if inv.Withholding.IsPositive() {
		wh, err := required(cfg.Defaults.WithholdingPayable, "withholding_payable")
		if err != nil {
			return ledger.Draft{}, err
		}
		lines = append(lines, supplier.apply(credit(wh, inv.Withholding), inv.Number))
	}

	return ledger.Draft{
		Date:        inv.Date,
		Description: describe(inv.Description, "Factura recibida %s", inv.Number),
		Lines:       lines,
		Origin:      ledger.OriginPurchaseInvoice,
		OriginID:    inv.ID,
		Locked:      true,
		CreatedBy:   inv.CreatedBy,
	}, nil
}

// taxLines builds one VAT line per distinct rate, in ascending rate order.
// Zero amounts produce no line.
func taxLines(taxes []TaxLine, account func(decimal.Decimal) (string, error),
	side func(string, decimal.Decimal) ledger.DraftLine) ([]ledger.DraftLine, decimal.Decimal, error) {
	byRate := map[string]decimal.Decimal{}
	rates := map[string]decimal.Decimal{}
	for _, t := range taxes {
		key := ledger.RateKey(t.Rate)
		byRate[key] = byRate[key].Add(t.Amount)
		rates[key] = t.Rate
	}
	keys := make([]string, 0, len(byRate))
	for k := range byRate {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return rates[keys[i]].LessThan(rates[keys[j]]) })

	total := decimal.Zero
	var lines []ledger.DraftLine
	for _, k := range keys {
		amount := byRate[k]
		if amount.IsZero() {
			continue
		}
		code, err := account(rates[k])
		if err != nil {
			return nil, decimal.Zero, err
		}
		lines = append(lines, side(code, amount))
		total = total.Add(amount)
	}
	return lines, total, nil
}

func invoiceTotal(total, base, vat decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return base.Add(vat)
	}
	return total
}

func describe(given, format string, args ...any) string {
	if given != "" {
		return given
	}
	return fmt.Sprintf(format, args...)
}
