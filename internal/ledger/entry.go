package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Origin string

const (
	OriginManual          Origin = "manual"
	OriginSalesInvoice    Origin = "sales_invoice"
	OriginPurchaseInvoice Origin = "purchase_invoice"
	OriginReceipt         Origin = "receipt"
	OriginPayment         Origin = "payment"
	OriginOpening         Origin = "opening"
	OriginClosing         Origin = "closing"
	OriginAdjustment      Origin = "adjustment"
)

var AllOrigins = []Origin{
	OriginManual,
	OriginSalesInvoice,
	OriginPurchaseInvoice,
	OriginReceipt,
	OriginPayment,
	OriginOpening,
	OriginClosing,
	OriginAdjustment,
}

// ValidOrigin checks if an origin string is known.
func ValidOrigin(o Origin) bool {
	for _, v := range AllOrigins {
		if v == o {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoided Status = "voided"
)

const DateLayout = "2006-01-02"

type JournalLine struct {
	Order       int             `json:"order"`
	AccountID   string          `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
	PartyID     string          `json:"party_id,omitempty"`
	PartyType   PartyType       `json:"party_type,omitempty"`
	PartyName   string          `json:"party_name,omitempty"`
	PartyTaxID  string          `json:"party_tax_id,omitempty"`
	DocumentRef string          `json:"document_ref,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

type JournalEntry struct {
	ID          string          `json:"id"`
	Number      int64           `json:"number"`
	FiscalYear  int             `json:"fiscal_year"`
	Date        time.Time       `json:"date"`
	Period      int             `json:"period"`
	Description string          `json:"description"`
	Lines       []JournalLine   `json:"lines"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Difference  decimal.Decimal `json:"difference"`
	Balanced    bool            `json:"balanced"`
	Origin      Origin          `json:"origin"`
	OriginID    string          `json:"origin_id,omitempty"`
	Status      Status          `json:"status"`
	Locked      bool            `json:"locked"`
	VoidedBy    string          `json:"voided_by,omitempty"`
	Reverses    string          `json:"reverses,omitempty"`
	VoidReason  string          `json:"void_reason,omitempty"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	// Existing is set when an idempotent post found the entry already there.
	Existing bool `json:"existing,omitempty"`
}

// DraftLine is one requested line of an entry before accounts are resolved.
type DraftLine struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
	PartyID     string
	PartyType   PartyType
	PartyName   string
	PartyTaxID  string
	DocumentRef string
	DueDate     *time.Time
}

// Draft is the input to posting.
type Draft struct {
	Date        time.Time
	Description string
	Lines       []DraftLine
	Origin      Origin
	OriginID    string
	Locked      bool
	CreatedBy   string

	// Reverses links a contra entry to the entry it cancels.
	Reverses string
}

// Totals are the debit and credit sums of a set of lines.
type Totals struct {
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Difference decimal.Decimal `json:"difference"`
	Balanced   bool            `json:"balanced"`
}

// ComputeTotals sums the lines. Balanced means |debit-credit| < Tolerance.
func ComputeTotals(lines []DraftLine) Totals {
	t := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, l := range lines {
		t.Debit = t.Debit.Add(l.Debit)
		t.Credit = t.Credit.Add(l.Credit)
	}
	t.Difference = t.Debit.Sub(t.Credit)
	t.Balanced = t.Difference.Abs().LessThan(Tolerance)
	return t
}

// Validate checks the structural invariants of a draft. Account existence,
// balance and period checks happen in the posting pipeline.
func (d *Draft) Validate() error {
	if d.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "entry date is required"}
	}
	if d.Description == "" {
		return &ValidationError{Field: "description", Reason: "entry description is required"}
	}
	if d.Origin == "" {
		d.Origin = OriginManual
	}
	if !ValidOrigin(d.Origin) {
		return &ValidationError{Field: "origin", Reason: fmt.Sprintf("unknown origin %q", d.Origin)}
	}
	if len(d.Lines) < 2 {
		return &ValidationError{Field: "lines", Reason: "entry must have at least 2 lines"}
	}
	for i, l := range d.Lines {
		if l.AccountCode == "" {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].account", i), Reason: "account is required"}
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("lines[%d]", i), Reason: "amounts cannot be negative"}
		}
		if l.Debit.IsPositive() && l.Credit.IsPositive() {
			return &ValidationError{Field: fmt.Sprintf("lines[%d]", i), Reason: "line cannot carry both debit and credit"}
		}
		if l.Debit.IsZero() && l.Credit.IsZero() {
			return &ValidationError{Field: fmt.Sprintf("lines[%d]", i), Reason: "line has no amount"}
		}
		if !l.Debit.Equal(Round2(l.Debit)) || !l.Credit.Equal(Round2(l.Credit)) {
			return &ValidationError{Field: fmt.Sprintf("lines[%d]", i), Reason: "amounts have more than 2 decimal places"}
		}
	}
	return nil
}

// ContraDraft builds the compensating draft for a posted entry: every line
// with debit and credit swapped, origin adjustment, locked.
func ContraDraft(e *JournalEntry, date time.Time, reason, by string) Draft {
	lines := make([]DraftLine, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = DraftLine{
			AccountCode: l.AccountCode,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Memo:        l.Memo,
			PartyID:     l.PartyID,
			PartyType:   l.PartyType,
			PartyName:   l.PartyName,
			PartyTaxID:  l.PartyTaxID,
			DocumentRef: l.DocumentRef,
			DueDate:     l.DueDate,
		}
	}
	desc := fmt.Sprintf("Anulación asiento %d", e.Number)
	if reason != "" {
		desc += ": " + reason
	}
	return Draft{
		Date:        date,
		Description: desc,
		Lines:       lines,
		Origin:      OriginAdjustment,
		Locked:      true,
		CreatedBy:   by,
		Reverses:    e.ID,
	}
}

// FiscalYearOf returns the fiscal year a date belongs to. A fiscal year is
// named after the calendar year in which it starts.
func FiscalYearOf(date time.Time, startMonth int) int {
	if startMonth <= 1 || startMonth > 12 {
		return date.Year()
	}
	if int(date.Month()) < startMonth {
		return date.Year() - 1
	}
	return date.Year()
}

// FiscalYearBounds returns the first and last day of a fiscal year.
func FiscalYearBounds(year, startMonth int) (time.Time, time.Time) {
	if startMonth < 1 || startMonth > 12 {
		startMonth = 1
	}
	start := time.Date(year, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, -1)
	return start, end
}

// DateOnly truncates a time to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
