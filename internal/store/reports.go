package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
)

// LineFilter selects journal lines for reporting. Unless IncludeVoided is
// set, voided entries and the contra entries that cancel them are both
// left out, so history reads as if neither existed.
type LineFilter struct {
	From          *time.Time // inclusive
	To            *time.Time // inclusive
	Before        *time.Time // exclusive
	FiscalYear    int
	Code          string
	CodePrefix    string
	CodeFrom      string
	CodeTo        string
	Origin        ledger.Origin
	ExcludeOrigin ledger.Origin
	IncludeVoided bool
}

// PostedLine is a journal line flattened with its entry header.
type PostedLine struct {
	EntryID     string          `json:"entry_id"`
	Number      int64           `json:"number"`
	FiscalYear  int             `json:"fiscal_year"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Origin      ledger.Origin   `json:"origin"`
	Status      ledger.Status   `json:"status"`
	Order       int             `json:"order"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
	PartyName   string          `json:"party_name,omitempty"`
	DocumentRef string          `json:"document_ref,omitempty"`
}

type LineTotals struct {
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Lines   int64
	Entries int64
}

// AccountSum is the debit and credit total of one account over a filter.
type AccountSum struct {
	Code   string
	Name   string
	Nature ledger.Nature
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (a AccountSum) Net() decimal.Decimal { return a.Debit.Sub(a.Credit) }

type postedLineRow struct {
	EntryID     string `db:"entry_id"`
	Number      int64  `db:"number"`
	FiscalYear  int    `db:"fiscal_year"`
	EntryDate   string `db:"entry_date"`
	Description string `db:"description"`
	Origin      string `db:"origin"`
	Status      string `db:"status"`
	LineOrder   int    `db:"line_order"`
	AccountCode string `db:"account_code"`
	AccountName string `db:"account_name"`
	Debit       int64  `db:"debit"`
	Credit      int64  `db:"credit"`
	Memo        string `db:"memo"`
	PartyName   string `db:"party_name"`
	DocumentRef string `db:"document_ref"`
}

// where builds the condition for a query over journal_lines l joined to
// journal_entries e. linePrefix decides whether account filters apply to
// the line itself or to any line of its entry.
func (f LineFilter) where(linePrefix bool) (string, []any) {
	conds := []string{}
	args := []any{}

	if f.IncludeVoided {
		conds = append(conds, `e.status IN ('posted','voided')`)
	} else {
		conds = append(conds, `e.status = 'posted' AND e.reverses IS NULL`)
	}
	if f.From != nil {
		conds = append(conds, `e.entry_date >= ?`)
		args = append(args, f.From.Format(ledger.DateLayout))
	}
	if f.To != nil {
		conds = append(conds, `e.entry_date <= ?`)
		args = append(args, f.To.Format(ledger.DateLayout))
	}
	if f.Before != nil {
		conds = append(conds, `e.entry_date < ?`)
		args = append(args, f.Before.Format(ledger.DateLayout))
	}
	if f.FiscalYear != 0 {
		conds = append(conds, `e.fiscal_year = ?`)
		args = append(args, f.FiscalYear)
	}
	if f.Origin != "" {
		conds = append(conds, `e.origin = ?`)
		args = append(args, string(f.Origin))
	}
	if f.ExcludeOrigin != "" {
		conds = append(conds, `e.origin <> ?`)
		args = append(args, string(f.ExcludeOrigin))
	}

	acct := []string{}
	if f.Code != "" {
		acct = append(acct, `%s.account_code = ?`)
		args = append(args, f.Code)
	}
	if f.CodePrefix != "" {
		acct = append(acct, `%s.account_code LIKE ? || '%%'`)
		args = append(args, f.CodePrefix)
	}
	if f.CodeFrom != "" {
		acct = append(acct, fmt.Sprintf(`substr(%%s.account_code, 1, %d) >= ?`, len(f.CodeFrom)))
		args = append(args, f.CodeFrom)
	}
	if f.CodeTo != "" {
		acct = append(acct, fmt.Sprintf(`substr(%%s.account_code, 1, %d) <= ?`, len(f.CodeTo)))
		args = append(args, f.CodeTo)
	}
	if len(acct) > 0 {
		alias := "l"
		if !linePrefix {
			alias = "x"
		}
		for i := range acct {
			acct[i] = fmt.Sprintf(acct[i], alias)
		}
		if linePrefix {
			conds = append(conds, acct...)
		} else {
			conds = append(conds, `EXISTS (SELECT 1 FROM journal_lines x WHERE x.entry_id = e.id AND `+strings.Join(acct, ` AND `)+`)`)
		}
	}
	return strings.Join(conds, ` AND `), args
}

// Lines returns matching lines ordered by date, entry number and line
// order. limit 0 means no limit.
func (t *Tx) Lines(ctx context.Context, f LineFilter, limit, offset int) ([]PostedLine, error) {
	where, args := f.where(true)
	query := `SELECT e.id AS entry_id, e.number, e.fiscal_year, e.entry_date, e.description, e.origin, e.status,
			l.line_order, l.account_code, l.account_name, l.debit, l.credit, l.memo, l.party_name, l.document_ref
		FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
		WHERE ` + where + `
		ORDER BY l.account_code, e.entry_date, e.fiscal_year, e.number, l.line_order`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, offset)
	}

	var rows []postedLineRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("report lines: %w", err)
	}
	out := make([]PostedLine, len(rows))
	for i, r := range rows {
		out[i] = PostedLine{
			EntryID:     r.EntryID,
			Number:      r.Number,
			FiscalYear:  r.FiscalYear,
			Date:        parseDate(r.EntryDate),
			Description: r.Description,
			Origin:      ledger.Origin(r.Origin),
			Status:      ledger.Status(r.Status),
			Order:       r.LineOrder,
			AccountCode: r.AccountCode,
			AccountName: r.AccountName,
			Debit:       ledger.FromCents(r.Debit),
			Credit:      ledger.FromCents(r.Credit),
			Memo:        r.Memo,
			PartyName:   r.PartyName,
			DocumentRef: r.DocumentRef,
		}
	}
	return out, nil
}

// JournalEntries returns whole entries in journal order; an account filter
// keeps entries with at least one matching line.
func (t *Tx) JournalEntries(ctx context.Context, f LineFilter, limit, offset int) ([]ledger.JournalEntry, error) {
	where, args := f.where(false)
	query := `SELECT ` + prefixed("e", entryColumns) + ` FROM journal_entries e WHERE ` + where +
		` ORDER BY e.entry_date, e.fiscal_year, e.number`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, offset)
	}
	var rows []entryRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("journal entries: %w", err)
	}
	ptrs := make([]*ledger.JournalEntry, len(rows))
	for i, r := range rows {
		ptrs[i] = r.toEntry()
	}
	if err := t.attachLines(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]ledger.JournalEntry, len(ptrs))
	for i, e := range ptrs {
		out[i] = *e
	}
	return out, nil
}

// JournalTotals sums every line of every entry JournalEntries would
// return, ignoring pagination.
func (t *Tx) JournalTotals(ctx context.Context, f LineFilter) (LineTotals, error) {
	where, args := f.where(false)
	var row struct {
		Debit   int64 `db:"debit"`
		Credit  int64 `db:"credit"`
		Lines   int64 `db:"lines"`
		Entries int64 `db:"entries"`
	}
	err := t.tx.GetContext(ctx, &row,
		`SELECT COALESCE(SUM(l.debit), 0) AS debit, COALESCE(SUM(l.credit), 0) AS credit,
			COUNT(l.id) AS lines, COUNT(DISTINCT e.id) AS entries
		FROM journal_entries e JOIN journal_lines l ON l.entry_id = e.id
		WHERE `+where, args...)
	if err != nil {
		return LineTotals{}, fmt.Errorf("journal totals: %w", err)
	}
	return LineTotals{
		Debit:   ledger.FromCents(row.Debit),
		Credit:  ledger.FromCents(row.Credit),
		Lines:   row.Lines,
		Entries: row.Entries,
	}, nil
}

// SumsByAccount aggregates matching lines per account, ordered by code.
func (t *Tx) SumsByAccount(ctx context.Context, f LineFilter) ([]AccountSum, error) {
	where, args := f.where(true)
	var rows []struct {
		Code   string `db:"code"`
		Name   string `db:"name"`
		Nature string `db:"nature"`
		Debit  int64  `db:"debit"`
		Credit int64  `db:"credit"`
	}
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT l.account_code AS code, a.name, a.nature,
			COALESCE(SUM(l.debit), 0) AS debit, COALESCE(SUM(l.credit), 0) AS credit
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE `+where+`
		GROUP BY l.account_code, a.name, a.nature
		ORDER BY l.account_code`, args...)
	if err != nil {
		return nil, fmt.Errorf("sums by account: %w", err)
	}
	out := make([]AccountSum, len(rows))
	for i, r := range rows {
		out[i] = AccountSum{
			Code:   r.Code,
			Name:   r.Name,
			Nature: ledger.Nature(r.Nature),
			Debit:  ledger.FromCents(r.Debit),
			Credit: ledger.FromCents(r.Credit),
		}
	}
	return out, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
