package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubsidiaryRule defines how per-party accounts are numbered: the group
// prefix and the total code length, e.g. prefix "430" length 7 → 4300001.
type SubsidiaryRule struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Length int    `json:"length" yaml:"length"`
}

// Capacity is the highest sequence the rule can hold.
func (r SubsidiaryRule) Capacity() int64 {
	n := r.Length - len(r.Prefix)
	if n <= 0 {
		return 0
	}
	c := int64(1)
	for i := 0; i < n; i++ {
		c *= 10
	}
	return c - 1
}

// Code formats the subaccount code for a sequence number.
func (r SubsidiaryRule) Code(seq int64) string {
	width := r.Length - len(r.Prefix)
	return fmt.Sprintf("%s%0*d", r.Prefix, width, seq)
}

func (r SubsidiaryRule) Validate() error {
	if _, err := Classify(r.Prefix); err != nil {
		return err
	}
	if r.Length <= len(r.Prefix) {
		return &ValidationError{Field: "subsidiary.length", Reason: fmt.Sprintf("length %d leaves no room after prefix %q", r.Length, r.Prefix)}
	}
	return nil
}

// DefaultAccounts maps posting roles to account codes. VAT maps are keyed by
// RateKey.
type DefaultAccounts struct {
	Sales                 string            `json:"sales" yaml:"sales"`
	Purchases             string            `json:"purchases" yaml:"purchases"`
	VATOutput             map[string]string `json:"vat_output,omitempty" yaml:"vat_output"`
	VATOutputGeneric      string            `json:"vat_output_generic" yaml:"vat_output_generic"`
	VATInput              map[string]string `json:"vat_input,omitempty" yaml:"vat_input"`
	VATInputGeneric       string            `json:"vat_input_generic" yaml:"vat_input_generic"`
	WithholdingReceivable string            `json:"withholding_receivable" yaml:"withholding_receivable"`
	WithholdingPayable    string            `json:"withholding_payable" yaml:"withholding_payable"`
	Cash                  string            `json:"cash" yaml:"cash"`
	Bank                  string            `json:"bank" yaml:"bank"`
	PaymentMethods        map[string]string `json:"payment_methods,omitempty" yaml:"payment_methods"`
	Result                string            `json:"result" yaml:"result"`
}

// FiscalConfig is the per-tenant configuration consulted by posting and
// the generators.
type FiscalConfig struct {
	ActiveYear         int                          `json:"active_year" yaml:"active_year"`
	YearStartMonth     int                          `json:"year_start_month" yaml:"year_start_month"`
	AutoPosting        bool                         `json:"auto_posting" yaml:"auto_posting"`
	AllowUnbalanced    bool                         `json:"allow_unbalanced" yaml:"allow_unbalanced"`
	EnforcePeriodLocks bool                         `json:"enforce_period_locks" yaml:"enforce_period_locks"`
	YearlyNumberReset  bool                         `json:"yearly_number_reset" yaml:"yearly_number_reset"`
	Defaults           DefaultAccounts              `json:"defaults" yaml:"defaults"`
	Subsidiary         map[PartyType]SubsidiaryRule `json:"subsidiary" yaml:"subsidiary"`
}

// DefaultFiscalConfig returns the configuration used for a new tenant.
func DefaultFiscalConfig(year int) FiscalConfig {
	return FiscalConfig{
		ActiveYear:         year,
		YearStartMonth:     1,
		AutoPosting:        true,
		EnforcePeriodLocks: true,
		YearlyNumberReset:  true,
		Defaults: DefaultAccounts{
			Sales:                 "700",
			Purchases:             "600",
			VATOutput:             map[string]string{},
			VATOutputGeneric:      "477",
			VATInput:              map[string]string{},
			VATInputGeneric:       "472",
			WithholdingReceivable: "473",
			WithholdingPayable:    "4751",
			Cash:                  "570",
			Bank:                  "572",
			PaymentMethods:        map[string]string{},
			Result:                "129",
		},
		Subsidiary: map[PartyType]SubsidiaryRule{
			PartyCustomer: {Prefix: "430", Length: 7},
			PartySupplier: {Prefix: "400", Length: 7},
		},
	}
}

func (c FiscalConfig) Validate() error {
	if c.YearStartMonth < 1 || c.YearStartMonth > 12 {
		return &ValidationError{Field: "year_start_month", Reason: fmt.Sprintf("%d is not a month", c.YearStartMonth)}
	}
	for pt, rule := range c.Subsidiary {
		if !ValidPartyType(pt) {
			return &ValidationError{Field: "subsidiary", Reason: fmt.Sprintf("unknown party type %q", pt)}
		}
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FiscalYear returns the fiscal year of a date under this configuration.
func (c FiscalConfig) FiscalYear(date time.Time) int {
	return FiscalYearOf(date, c.YearStartMonth)
}

// RateKey normalises a VAT rate for map lookups: 21, 21.0 and 21.00 all
// become "21"; 5.5 stays "5.5".
func RateKey(rate decimal.Decimal) string {
	s := rate.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// OutputVATAccount resolves the output VAT account for a rate, falling back
// to the generic one.
func (c FiscalConfig) OutputVATAccount(rate decimal.Decimal) (string, error) {
	if code := c.Defaults.VATOutput[RateKey(rate)]; code != "" {
		return code, nil
	}
	if c.Defaults.VATOutputGeneric != "" {
		return c.Defaults.VATOutputGeneric, nil
	}
	return "", &MissingDefaultAccountError{Role: "vat_output " + RateKey(rate)}
}

// InputVATAccount is the purchase-side counterpart of OutputVATAccount.
func (c FiscalConfig) InputVATAccount(rate decimal.Decimal) (string, error) {
	if code := c.Defaults.VATInput[RateKey(rate)]; code != "" {
		return code, nil
	}
	if c.Defaults.VATInputGeneric != "" {
		return c.Defaults.VATInputGeneric, nil
	}
	return "", &MissingDefaultAccountError{Role: "vat_input " + RateKey(rate)}
}

// PeriodLock marks a month (1-12) or a whole year (month 0) as closed.
type PeriodLock struct {
	Year  int `json:"year" db:"year"`
	Month int `json:"month" db:"month"`
}
