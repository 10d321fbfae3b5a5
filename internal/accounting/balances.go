package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

// AccountBalance is an account's position at a point in time.
type AccountBalance struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Nature     ledger.Nature   `json:"nature"`
	AsOf       time.Time       `json:"as_of"`
	DebitSum   decimal.Decimal `json:"debit_sum"`
	CreditSum  decimal.Decimal `json:"credit_sum"`
	NetBalance decimal.Decimal `json:"net_balance"`
}

// Balance returns the account with its always-current running totals.
func (s *Service) Balance(ctx context.Context, code string) (*ledger.Account, error) {
	return s.GetAccount(ctx, code)
}

// BalanceAsOf recomputes an account's balance from the journal, counting
// lines dated on or before cutoff. A non-nil fiscalYear restricts the sum
// to that year. Voided entries and their contra entries are left out.
func (s *Service) BalanceAsOf(ctx context.Context, code string, cutoff time.Time, fiscalYear *int) (*AccountBalance, error) {
	cutoff = ledger.DateOnly(cutoff)
	var bal *AccountBalance
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		acct, err := tx.AccountByCode(ctx, code)
		if err != nil {
			return err
		}
		f := store.LineFilter{Code: code, To: &cutoff}
		if fiscalYear != nil {
			f.FiscalYear = *fiscalYear
		}
		sums, err := tx.SumsByAccount(ctx, f)
		if err != nil {
			return err
		}
		bal = &AccountBalance{
			Code:      acct.Code,
			Name:      acct.Name,
			Nature:    acct.Nature,
			AsOf:      cutoff,
			DebitSum:  decimal.Zero,
			CreditSum: decimal.Zero,
		}
		if len(sums) == 1 {
			bal.DebitSum, bal.CreditSum = sums[0].Debit, sums[0].Credit
		}
		bal.NetBalance = ledger.NetBalance(acct.Nature, bal.DebitSum, bal.CreditSum)
		return nil
	})
	return bal, err
}
