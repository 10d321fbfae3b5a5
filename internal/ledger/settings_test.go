package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsidiaryRule(t *testing.T) {
	r := SubsidiaryRule{Prefix: "430", Length: 7}
	assert.Equal(t, "4300001", r.Code(1))
	assert.Equal(t, "4300123", r.Code(123))
	assert.Equal(t, int64(9999), r.Capacity())
	require.NoError(t, r.Validate())

	bad := SubsidiaryRule{Prefix: "430", Length: 3}
	assert.True(t, errors.Is(bad.Validate(), ErrValidation))
}

func TestRateKey(t *testing.T) {
	assert.Equal(t, "21", RateKey(dec("21")))
	assert.Equal(t, "21", RateKey(dec("21.00")))
	assert.Equal(t, "5.5", RateKey(dec("5.50")))
	assert.Equal(t, "0", RateKey(dec("0")))
}

func TestVATAccountFallback(t *testing.T) {
	cfg := DefaultFiscalConfig(2025)

	code, err := cfg.OutputVATAccount(dec("21"))
	require.NoError(t, err)
	assert.Equal(t, "477", code, "generic account when no rate-specific one exists")

	cfg.Defaults.VATOutput["21"] = "47700021"
	code, err = cfg.OutputVATAccount(dec("21.00"))
	require.NoError(t, err)
	assert.Equal(t, "47700021", code)

	cfg.Defaults.VATInputGeneric = ""
	_, err = cfg.InputVATAccount(dec("10"))
	var missing *MissingDefaultAccountError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Role, "10")
}

func TestFiscalConfigValidate(t *testing.T) {
	cfg := DefaultFiscalConfig(2025)
	require.NoError(t, cfg.Validate())

	cfg.YearStartMonth = 13
	assert.Error(t, cfg.Validate())

	cfg = DefaultFiscalConfig(2025)
	cfg.Subsidiary["employee"] = SubsidiaryRule{Prefix: "465", Length: 7}
	assert.Error(t, cfg.Validate())
}
