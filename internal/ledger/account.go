package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeIncome    AccountType = "income"
	TypeExpense   AccountType = "expense"
)

var AllTypes = []AccountType{
	TypeAsset,
	TypeLiability,
	TypeEquity,
	TypeIncome,
	TypeExpense,
}

// Nature is the side that increases an account's natural balance.
type Nature string

const (
	NatureDebit  Nature = "debit"
	NatureCredit Nature = "credit"
)

type PartyType string

const (
	PartyCustomer PartyType = "customer"
	PartySupplier PartyType = "supplier"
)

// ValidPartyType reports whether t is a party type with subsidiary accounts.
func ValidPartyType(t PartyType) bool {
	return t == PartyCustomer || t == PartySupplier
}

type Account struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Nature         Nature          `json:"nature"`
	ParentCode     string          `json:"parent_code,omitempty"`
	Level          int             `json:"level"`
	Postable       bool            `json:"postable"`
	System         bool            `json:"system"`
	Active         bool            `json:"active"`
	PartyID        string          `json:"party_id,omitempty"`
	PartyType      PartyType       `json:"party_type,omitempty"`
	PartyName      string          `json:"party_name,omitempty"`
	PartyTaxID     string          `json:"party_tax_id,omitempty"`
	DebitSum       decimal.Decimal `json:"debit_sum"`
	CreditSum      decimal.Decimal `json:"credit_sum"`
	NetBalance     decimal.Decimal `json:"net_balance"`
	MovementCount  int64           `json:"movement_count"`
	LastMovementAt *time.Time      `json:"last_movement_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Classification is the type and nature implied by an account code.
type Classification struct {
	Type   AccountType `json:"type"`
	Nature Nature      `json:"nature"`
}

var (
	debitAsset      = Classification{Type: TypeAsset, Nature: NatureDebit}
	creditLiability = Classification{Type: TypeLiability, Nature: NatureCredit}
)

// Classify derives type and nature from the group prefix of a PGC code.
// It only looks at the first three digits, so it also works on aggregated
// codes produced by reports.
func Classify(code string) (Classification, error) {
	if err := validateCodeChars(code); err != nil {
		return Classification{}, err
	}

	switch code[0] {
	case '1':
		return Classification{Type: TypeEquity, Nature: NatureCredit}, nil
	case '2', '3', '5':
		return debitAsset, nil
	case '4':
		return classifyGroup4(code), nil
	case '6':
		return Classification{Type: TypeExpense, Nature: NatureDebit}, nil
	case '7':
		return Classification{Type: TypeIncome, Nature: NatureCredit}, nil
	default:
		return Classification{}, &ValidationError{Field: "code", Reason: fmt.Sprintf("%q: group must be 1-7", code)}
	}
}

// classifyGroup4 splits the third-party group into customer, supplier,
// staff, tax-authority and accrual ranges.
func classifyGroup4(code string) Classification {
	if len(code) < 2 {
		return debitAsset
	}
	switch code[1] {
	case '0', '1':
		return creditLiability
	case '3', '4':
		return debitAsset
	case '6':
		if digitAt(code, 2) == 0 {
			return debitAsset
		}
		return creditLiability
	case '7':
		if d := digitAt(code, 2); d >= 0 && d <= 4 {
			return debitAsset
		}
		return creditLiability
	case '8':
		if digitAt(code, 2) == 5 {
			return creditLiability
		}
		return debitAsset
	case '9':
		return creditLiability
	default:
		return debitAsset
	}
}

// digitAt returns the digit at position i, or -1 when the code is shorter.
func digitAt(code string, i int) int {
	if i >= len(code) {
		return -1
	}
	return int(code[i] - '0')
}

func validateCodeChars(code string) error {
	if code == "" {
		return &ValidationError{Field: "code", Reason: "account code is required"}
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "code", Reason: fmt.Sprintf("%q: only digits allowed", code)}
		}
	}
	return nil
}

// Level returns the hierarchy depth of a code. Lengths 1-4 are levels 1-4;
// each further pair of characters adds one level.
func Level(code string) int {
	n := len(code)
	if n <= 4 {
		return n
	}
	return 4 + (n-3)/2
}

// ParentCode trims the last character. Top-level codes have no parent.
func ParentCode(code string) string {
	if len(code) <= 1 {
		return ""
	}
	return code[:len(code)-1]
}

// DefaultPostable reports whether an account at this level accepts
// movements when the caller does not say otherwise.
func DefaultPostable(level int) bool {
	return level >= 3
}

// NetBalance applies the nature sign to debit and credit sums.
func NetBalance(n Nature, debitSum, creditSum decimal.Decimal) decimal.Decimal {
	if n == NatureCredit {
		return creditSum.Sub(debitSum)
	}
	return debitSum.Sub(creditSum)
}

// NewAccount builds an account with every derived field filled in.
// postable overrides the level default when non-nil.
func NewAccount(code, name string, postable *bool) (*Account, error) {
	cls, err := Classify(code)
	if err != nil {
		return nil, err
	}
	level := Level(code)
	acct := &Account{
		Code:       code,
		Name:       name,
		Type:       cls.Type,
		Nature:     cls.Nature,
		ParentCode: ParentCode(code),
		Level:      level,
		Postable:   DefaultPostable(level),
		Active:     true,
		DebitSum:   decimal.Zero,
		CreditSum:  decimal.Zero,
		NetBalance: decimal.Zero,
	}
	if postable != nil {
		acct.Postable = *postable
	}
	return acct, acct.Validate()
}

// Validate checks all account invariants.
func (a *Account) Validate() error {
	if _, err := Classify(a.Code); err != nil {
		return err
	}
	if a.Name == "" {
		return &ValidationError{Field: "name", Reason: "account name is required"}
	}
	if a.PartyID != "" && !ValidPartyType(a.PartyType) {
		return &ValidationError{Field: "party_type", Reason: fmt.Sprintf("unknown party type %q", a.PartyType)}
	}
	if !a.NetBalance.Equal(NetBalance(a.Nature, a.DebitSum, a.CreditSum)) {
		return &ValidationError{Field: "net_balance", Reason: "does not match debit/credit sums"}
	}
	return nil
}

// TypeLabel returns a human-readable label for an account type.
func TypeLabel(t AccountType) string {
	switch t {
	case TypeAsset:
		return "Activo"
	case TypeLiability:
		return "Pasivo"
	case TypeEquity:
		return "Patrimonio neto"
	case TypeIncome:
		return "Ingresos"
	case TypeExpense:
		return "Gastos"
	default:
		return string(t)
	}
}
