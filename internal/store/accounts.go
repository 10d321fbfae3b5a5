package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
)

const accountColumns = `id, code, name, type, nature, parent_code, level, postable, is_system, active,
	party_id, party_type, party_name, party_tax_id, debit_sum, credit_sum, net_balance,
	movement_count, last_movement_at, created_at`

type accountRow struct {
	ID             string         `db:"id"`
	Code           string         `db:"code"`
	Name           string         `db:"name"`
	Type           string         `db:"type"`
	Nature         string         `db:"nature"`
	ParentCode     string         `db:"parent_code"`
	Level          int            `db:"level"`
	Postable       bool           `db:"postable"`
	System         bool           `db:"is_system"`
	Active         bool           `db:"active"`
	PartyID        sql.NullString `db:"party_id"`
	PartyType      sql.NullString `db:"party_type"`
	PartyName      string         `db:"party_name"`
	PartyTaxID     string         `db:"party_tax_id"`
	DebitSum       int64          `db:"debit_sum"`
	CreditSum      int64          `db:"credit_sum"`
	NetBalance     int64          `db:"net_balance"`
	MovementCount  int64          `db:"movement_count"`
	LastMovementAt sql.NullString `db:"last_movement_at"`
	CreatedAt      string         `db:"created_at"`
}

func (r accountRow) toAccount() *ledger.Account {
	return &ledger.Account{
		ID:             r.ID,
		Code:           r.Code,
		Name:           r.Name,
		Type:           ledger.AccountType(r.Type),
		Nature:         ledger.Nature(r.Nature),
		ParentCode:     r.ParentCode,
		Level:          r.Level,
		Postable:       r.Postable,
		System:         r.System,
		Active:         r.Active,
		PartyID:        r.PartyID.String,
		PartyType:      ledger.PartyType(r.PartyType.String),
		PartyName:      r.PartyName,
		PartyTaxID:     r.PartyTaxID,
		DebitSum:       ledger.FromCents(r.DebitSum),
		CreditSum:      ledger.FromCents(r.CreditSum),
		NetBalance:     ledger.FromCents(r.NetBalance),
		MovementCount:  r.MovementCount,
		LastMovementAt: parseNullTime(r.LastMovementAt),
		CreatedAt:      parseTime(r.CreatedAt),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertAccount stores a new account. A taken code yields
// DuplicateAccountError; a party that already has an account yields
// ErrConcurrencyConflict.
func (t *Tx) InsertAccount(ctx context.Context, acct *ledger.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	if acct.ID == "" {
		acct.ID = uuid.Must(uuid.NewV7()).String()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (id, code, name, type, nature, parent_code, level, postable, is_system, active,
			party_id, party_type, party_name, party_tax_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Code, acct.Name, string(acct.Type), string(acct.Nature), acct.ParentCode, acct.Level,
		boolToInt(acct.Postable), boolToInt(acct.System), boolToInt(acct.Active),
		nullString(acct.PartyID), nullString(string(acct.PartyType)), acct.PartyName, acct.PartyTaxID,
		formatTime(acct.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			var exists int
			if qerr := t.tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM accounts WHERE code = ?`, acct.Code); qerr == nil && exists > 0 {
				return &ledger.DuplicateAccountError{Code: acct.Code}
			}
		}
		return fmt.Errorf("insert account %s: %w", acct.Code, mapSQLiteError(err))
	}
	return nil
}

func (t *Tx) AccountByCode(ctx context.Context, code string) (*ledger.Account, error) {
	var row accountRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.AccountNotFoundError{Code: code}
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", code, err)
	}
	return row.toAccount(), nil
}

// AccountsByCodes loads several accounts at once. Missing codes are simply
// absent from the result.
func (t *Tx) AccountsByCodes(ctx context.Context, codes []string) (map[string]*ledger.Account, error) {
	out := make(map[string]*ledger.Account, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+accountColumns+` FROM accounts WHERE code IN (?)`, codes)
	if err != nil {
		return nil, err
	}
	var rows []accountRow
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	for _, r := range rows {
		out[r.Code] = r.toAccount()
	}
	return out, nil
}

func (t *Tx) ListAccounts(ctx context.Context, filter AccountFilter) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Prefix != "" {
		query += ` AND code LIKE ? || '%'`
		args = append(args, filter.Prefix)
	}
	if filter.PartyType != "" {
		query += ` AND party_type = ?`
		args = append(args, string(filter.PartyType))
	}
	if filter.PostableOnly {
		query += ` AND postable = 1`
	}
	if filter.ActiveOnly {
		query += ` AND active = 1`
	}

	query += ` ORDER BY code`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	var rows []accountRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]ledger.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, *r.toAccount())
	}
	return accounts, nil
}

// SubsidiaryAccount returns the account linked to a party, or
// ErrAccountNotFound.
func (t *Tx) SubsidiaryAccount(ctx context.Context, partyType ledger.PartyType, partyID string) (*ledger.Account, error) {
	var row accountRow
	err := t.tx.GetContext(ctx, &row,
		`SELECT `+accountColumns+` FROM accounts WHERE party_type = ? AND party_id = ?`, string(partyType), partyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ledger.ErrAccountNotFound, partyType, partyID)
	}
	if err != nil {
		return nil, fmt.Errorf("get subsidiary account: %w", err)
	}
	return row.toAccount(), nil
}

// MaxSubsidiaryCode returns the highest code of the given length under
// prefix, or "" when there is none. Equal-length digit codes sort
// numerically.
func (t *Tx) MaxSubsidiaryCode(ctx context.Context, rule ledger.SubsidiaryRule) (string, error) {
	var code sql.NullString
	err := t.tx.GetContext(ctx, &code,
		`SELECT MAX(code) FROM accounts WHERE code LIKE ? || '%' AND length(code) = ?`, rule.Prefix, rule.Length)
	if err != nil {
		return "", fmt.Errorf("max subsidiary code: %w", err)
	}
	return code.String, nil
}

func (t *Tx) RenameAccount(ctx context.Context, code, name string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE code = ?`, name, code)
	if err != nil {
		return fmt.Errorf("rename account %s: %w", code, err)
	}
	return expectOne(res, &ledger.AccountNotFoundError{Code: code})
}

func (t *Tx) SetAccountActive(ctx context.Context, code string, active bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE accounts SET active = ? WHERE code = ?`, boolToInt(active), code)
	if err != nil {
		return fmt.Errorf("set account active %s: %w", code, err)
	}
	return expectOne(res, &ledger.AccountNotFoundError{Code: code})
}

// ApplyDelta adds one line's amounts to an account's running totals in a
// single statement.
func (t *Tx) ApplyDelta(ctx context.Context, accountID string, debit, credit decimal.Decimal, at time.Time) error {
	d, c := ledger.ToCents(debit), ledger.ToCents(credit)
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET
			debit_sum = debit_sum + ?,
			credit_sum = credit_sum + ?,
			net_balance = CASE nature
				WHEN 'credit' THEN (credit_sum + ?) - (debit_sum + ?)
				ELSE (debit_sum + ?) - (credit_sum + ?)
			END,
			movement_count = movement_count + 1,
			last_movement_at = ?
		WHERE id = ?`,
		d, c, c, d, d, c, formatTime(at), accountID,
	)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", mapSQLiteError(err))
	}
	return expectOne(res, fmt.Errorf("%w: id %s", ledger.ErrAccountNotFound, accountID))
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
