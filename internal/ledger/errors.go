package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation               = errors.New("validation failed")
	ErrDuplicateAccount         = errors.New("account already exists")
	ErrAccountNotFound          = errors.New("account not found")
	ErrNonPostableAccount       = errors.New("account does not accept movements")
	ErrUnbalancedEntry          = errors.New("journal entry does not balance")
	ErrClosedPeriod             = errors.New("period is closed")
	ErrAlreadyVoided            = errors.New("journal entry already voided")
	ErrEntryNotFound            = errors.New("journal entry not found")
	ErrMissingDefaultAccount    = errors.New("no default account configured")
	ErrUnbalancedGeneratedEntry = errors.New("generated journal entry does not balance")
	ErrAutomaticPostingDisabled = errors.New("automatic posting disabled")
	ErrConcurrencyConflict      = errors.New("concurrent write conflict")
	ErrSystemAccountImmutable   = errors.New("system accounts cannot be modified")
	ErrAccountHasMovements      = errors.New("account has movements")
	ErrPartyNotFound            = errors.New("party not found")
	ErrInvalidTenant            = errors.New("invalid tenant key")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type DuplicateAccountError struct {
	Code string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateAccount, e.Code)
}

func (e *DuplicateAccountError) Unwrap() error { return ErrDuplicateAccount }

type AccountNotFoundError struct {
	Code string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAccountNotFound, e.Code)
}

func (e *AccountNotFoundError) Unwrap() error { return ErrAccountNotFound }

type NonPostableAccountError struct {
	Code string
}

func (e *NonPostableAccountError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNonPostableAccount, e.Code)
}

func (e *NonPostableAccountError) Unwrap() error { return ErrNonPostableAccount }

type UnbalancedEntryError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("%s: debit %s, credit %s, difference %s", ErrUnbalancedEntry,
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2), e.Difference.StringFixed(2))
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalancedEntry }

type ClosedPeriodError struct {
	Year  int
	Month int
}

func (e *ClosedPeriodError) Error() string {
	return fmt.Sprintf("%s: %04d-%02d", ErrClosedPeriod, e.Year, e.Month)
}

func (e *ClosedPeriodError) Unwrap() error { return ErrClosedPeriod }

type AlreadyVoidedError struct {
	EntryID string
	Number  int64
}

func (e *AlreadyVoidedError) Error() string {
	return fmt.Sprintf("%s: entry %d (%s)", ErrAlreadyVoided, e.Number, e.EntryID)
}

func (e *AlreadyVoidedError) Unwrap() error { return ErrAlreadyVoided }

type MissingDefaultAccountError struct {
	Role string
}

func (e *MissingDefaultAccountError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingDefaultAccount, e.Role)
}

func (e *MissingDefaultAccountError) Unwrap() error { return ErrMissingDefaultAccount }

// UnbalancedGeneratedEntryError means a generator produced lines that do not
// balance. It points at bad input or configuration and is never retried.
type UnbalancedGeneratedEntryError struct {
	Origin   Origin
	OriginID string
	Totals   Totals
}

func (e *UnbalancedGeneratedEntryError) Error() string {
	return fmt.Sprintf("%s: %s %s: debit %s, credit %s, difference %s", ErrUnbalancedGeneratedEntry,
		e.Origin, e.OriginID, e.Totals.Debit.StringFixed(2), e.Totals.Credit.StringFixed(2), e.Totals.Difference.StringFixed(2))
}

func (e *UnbalancedGeneratedEntryError) Unwrap() error { return ErrUnbalancedGeneratedEntry }
