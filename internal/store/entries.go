package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/simonvc/contaledger/internal/ledger"
)

const entryColumns = `id, number, fiscal_year, entry_date, period, description, total_debit, total_credit,
	balanced, origin, origin_id, status, locked, voided_by, reverses, void_reason, voided_at, created_by, created_at`

type entryRow struct {
	ID          string         `db:"id"`
	Number      int64          `db:"number"`
	FiscalYear  int            `db:"fiscal_year"`
	EntryDate   string         `db:"entry_date"`
	Period      int            `db:"period"`
	Description string         `db:"description"`
	TotalDebit  int64          `db:"total_debit"`
	TotalCredit int64          `db:"total_credit"`
	Balanced    bool           `db:"balanced"`
	Origin      string         `db:"origin"`
	OriginID    string         `db:"origin_id"`
	Status      string         `db:"status"`
	Locked      bool           `db:"locked"`
	VoidedBy    sql.NullString `db:"voided_by"`
	Reverses    sql.NullString `db:"reverses"`
	VoidReason  string         `db:"void_reason"`
	VoidedAt    sql.NullString `db:"voided_at"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   string         `db:"created_at"`
}

func (r entryRow) toEntry() *ledger.JournalEntry {
	debit, credit := ledger.FromCents(r.TotalDebit), ledger.FromCents(r.TotalCredit)
	return &ledger.JournalEntry{
		ID:          r.ID,
		Number:      r.Number,
		FiscalYear:  r.FiscalYear,
		Date:        parseDate(r.EntryDate),
		Period:      r.Period,
		Description: r.Description,
		TotalDebit:  debit,
		TotalCredit: credit,
		Difference:  debit.Sub(credit),
		Balanced:    r.Balanced,
		Origin:      ledger.Origin(r.Origin),
		OriginID:    r.OriginID,
		Status:      ledger.Status(r.Status),
		Locked:      r.Locked,
		VoidedBy:    r.VoidedBy.String,
		Reverses:    r.Reverses.String,
		VoidReason:  r.VoidReason,
		VoidedAt:    parseNullTime(r.VoidedAt),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

type lineRow struct {
	EntryID     string         `db:"entry_id"`
	LineOrder   int            `db:"line_order"`
	AccountID   string         `db:"account_id"`
	AccountCode string         `db:"account_code"`
	AccountName string         `db:"account_name"`
	Debit       int64          `db:"debit"`
	Credit      int64          `db:"credit"`
	Memo        string         `db:"memo"`
	PartyID     string         `db:"party_id"`
	PartyType   string         `db:"party_type"`
	PartyName   string         `db:"party_name"`
	PartyTaxID  string         `db:"party_tax_id"`
	DocumentRef string         `db:"document_ref"`
	DueDate     sql.NullString `db:"due_date"`
}

func (r lineRow) toLine() ledger.JournalLine {
	l := ledger.JournalLine{
		Order:       r.LineOrder,
		AccountID:   r.AccountID,
		AccountCode: r.AccountCode,
		AccountName: r.AccountName,
		Debit:       ledger.FromCents(r.Debit),
		Credit:      ledger.FromCents(r.Credit),
		Memo:        r.Memo,
		PartyID:     r.PartyID,
		PartyType:   ledger.PartyType(r.PartyType),
		PartyName:   r.PartyName,
		PartyTaxID:  r.PartyTaxID,
		DocumentRef: r.DocumentRef,
	}
	if r.DueDate.Valid && r.DueDate.String != "" {
		d := parseDate(r.DueDate.String)
		l.DueDate = &d
	}
	return l
}

// InsertEntry stores an entry and its lines. Numbering and origin clashes
// surface as ErrConcurrencyConflict.
func (t *Tx) InsertEntry(ctx context.Context, e *ledger.JournalEntry) error {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	date := e.Date.Format(ledger.DateLayout)

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO journal_entries (id, number, fiscal_year, entry_date, period, description, total_debit,
			total_credit, balanced, origin, origin_id, status, locked, reverses, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Number, e.FiscalYear, date, e.Period, e.Description,
		ledger.ToCents(e.TotalDebit), ledger.ToCents(e.TotalCredit), boolToInt(e.Balanced),
		string(e.Origin), e.OriginID, string(e.Status), boolToInt(e.Locked), nullString(e.Reverses),
		e.CreatedBy, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", mapSQLiteError(err))
	}

	for i := range e.Lines {
		l := &e.Lines[i]
		l.Order = i + 1
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO journal_lines (entry_id, line_order, account_id, account_code, account_name, entry_date,
				debit, credit, memo, party_id, party_type, party_name, party_tax_id, document_ref, due_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, l.Order, l.AccountID, l.AccountCode, l.AccountName, date,
			ledger.ToCents(l.Debit), ledger.ToCents(l.Credit), l.Memo,
			l.PartyID, string(l.PartyType), l.PartyName, l.PartyTaxID, l.DocumentRef, nullDate(l.DueDate),
		)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", l.Order, mapSQLiteError(err))
		}
	}
	return nil
}

func (t *Tx) EntryByID(ctx context.Context, id string) (*ledger.JournalEntry, error) {
	var row entryRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e := row.toEntry()
	if err := t.attachLines(ctx, []*ledger.JournalEntry{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// EntryByOrigin finds the posted entry generated for a business document.
func (t *Tx) EntryByOrigin(ctx context.Context, origin ledger.Origin, originID string) (*ledger.JournalEntry, error) {
	var row entryRow
	err := t.tx.GetContext(ctx, &row,
		`SELECT `+entryColumns+` FROM journal_entries WHERE origin = ? AND origin_id = ? AND status = 'posted'`,
		string(origin), originID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ledger.ErrEntryNotFound, origin, originID)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by origin: %w", err)
	}
	e := row.toEntry()
	if err := t.attachLines(ctx, []*ledger.JournalEntry{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// MarkVoided flags a posted entry as voided by contraID. It reports false
// when the entry was not in a voidable state.
func (t *Tx) MarkVoided(ctx context.Context, id, contraID, reason string, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE journal_entries SET status = 'voided', voided_by = ?, void_reason = ?, voided_at = ?
		WHERE id = ? AND status = 'posted' AND voided_by IS NULL`,
		contraID, reason, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("mark voided: %w", mapSQLiteError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *Tx) ListEntries(ctx context.Context, filter EntryFilter) ([]ledger.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	args := []any{}

	if filter.FiscalYear != 0 {
		query += ` AND fiscal_year = ?`
		args = append(args, filter.FiscalYear)
	}
	if filter.From != nil {
		query += ` AND entry_date >= ?`
		args = append(args, filter.From.Format(ledger.DateLayout))
	}
	if filter.To != nil {
		query += ` AND entry_date <= ?`
		args = append(args, filter.To.Format(ledger.DateLayout))
	}
	if filter.Origin != "" {
		query += ` AND origin = ?`
		args = append(args, string(filter.Origin))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}

	query += ` ORDER BY entry_date, fiscal_year, number`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	var rows []entryRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	ptrs := make([]*ledger.JournalEntry, len(rows))
	for i, r := range rows {
		ptrs[i] = r.toEntry()
	}
	if err := t.attachLines(ctx, ptrs); err != nil {
		return nil, err
	}
	entries := make([]ledger.JournalEntry, len(ptrs))
	for i, e := range ptrs {
		entries[i] = *e
	}
	return entries, nil
}

func (t *Tx) attachLines(ctx context.Context, entries []*ledger.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	byID := make(map[string]*ledger.JournalEntry, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		byID[e.ID] = e
	}
	query, args, err := sqlx.In(
		`SELECT entry_id, line_order, account_id, account_code, account_name, debit, credit, memo,
			party_id, party_type, party_name, party_tax_id, document_ref, due_date
		FROM journal_lines WHERE entry_id IN (?) ORDER BY entry_id, line_order`, ids)
	if err != nil {
		return err
	}
	var rows []lineRow
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("get lines: %w", err)
	}
	for _, r := range rows {
		e := byID[r.EntryID]
		e.Lines = append(e.Lines, r.toLine())
	}
	return nil
}

// NextGlobalNumber allocates the next number of the never-resetting
// sequence. The counter never falls behind a number already issued, so
// switching from yearly numbering keeps numbers unique.
func (t *Tx) NextGlobalNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := t.tx.GetContext(ctx, &n,
		`UPDATE counters
		 SET value = MAX(value, (SELECT COALESCE(MAX(number), 0) FROM journal_entries)) + 1
		 WHERE scope = 'global' RETURNING value`); err != nil {
		return 0, fmt.Errorf("next global number: %w", mapSQLiteError(err))
	}
	return n, nil
}

// NextYearNumber returns max(number)+1 within a fiscal year. Only safe
// inside a write transaction.
func (t *Tx) NextYearNumber(ctx context.Context, year int) (int64, error) {
	var n int64
	if err := t.tx.GetContext(ctx, &n,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM journal_entries WHERE fiscal_year = ?`, year); err != nil {
		return 0, fmt.Errorf("next number: %w", err)
	}
	return n, nil
}
