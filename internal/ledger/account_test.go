package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code   string
		typ    AccountType
		nature Nature
	}{
		{"100", TypeEquity, NatureCredit},
		{"129", TypeEquity, NatureCredit},
		{"211", TypeAsset, NatureDebit},
		{"300", TypeAsset, NatureDebit},
		{"400", TypeLiability, NatureCredit},
		{"4000012", TypeLiability, NatureCredit},
		{"410", TypeLiability, NatureCredit},
		{"430", TypeAsset, NatureDebit},
		{"4300001", TypeAsset, NatureDebit},
		{"440", TypeAsset, NatureDebit},
		{"460", TypeAsset, NatureDebit},
		{"465", TypeLiability, NatureCredit},
		{"470", TypeAsset, NatureDebit},
		{"472", TypeAsset, NatureDebit},
		{"473", TypeAsset, NatureDebit},
		{"4751", TypeLiability, NatureCredit},
		{"476", TypeLiability, NatureCredit},
		{"477", TypeLiability, NatureCredit},
		{"480", TypeAsset, NatureDebit},
		{"485", TypeLiability, NatureCredit},
		{"490", TypeLiability, NatureCredit},
		{"572", TypeAsset, NatureDebit},
		{"600", TypeExpense, NatureDebit},
		{"700", TypeIncome, NatureCredit},
		{"7", TypeIncome, NatureCredit},
	}
	for _, tt := range tests {
		got, err := Classify(tt.code)
		require.NoError(t, err, "Classify(%q)", tt.code)
		assert.Equal(t, tt.typ, got.Type, "type of %q", tt.code)
		assert.Equal(t, tt.nature, got.Nature, "nature of %q", tt.code)
	}
}

func TestClassify_Invalid(t *testing.T) {
	for _, code := range []string{"", "8", "900", "0", "43A", "-43"} {
		_, err := Classify(code)
		require.Error(t, err, "Classify(%q)", code)
		assert.True(t, errors.Is(err, ErrValidation))
	}
}

func TestLevelAndParent(t *testing.T) {
	tests := []struct {
		code   string
		level  int
		parent string
	}{
		{"4", 1, ""},
		{"43", 2, "4"},
		{"430", 3, "43"},
		{"4751", 4, "475"},
		{"47510", 5, "4751"},
		{"475100", 5, "47510"},
		{"4300001", 6, "430000"},
		{"43000001", 6, "4300000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, Level(tt.code), "Level(%q)", tt.code)
		assert.Equal(t, tt.parent, ParentCode(tt.code), "ParentCode(%q)", tt.code)
	}
}

func TestNewAccount(t *testing.T) {
	acct, err := NewAccount("430", "Clientes", nil)
	require.NoError(t, err)
	assert.Equal(t, TypeAsset, acct.Type)
	assert.Equal(t, NatureDebit, acct.Nature)
	assert.Equal(t, 3, acct.Level)
	assert.Equal(t, "43", acct.ParentCode)
	assert.True(t, acct.Postable)
	assert.True(t, acct.Active)

	heading, err := NewAccount("43", "Clientes", nil)
	require.NoError(t, err)
	assert.False(t, heading.Postable, "level 2 defaults to non-postable")

	yes := true
	forced, err := NewAccount("57", "Tesorería", &yes)
	require.NoError(t, err)
	assert.True(t, forced.Postable)

	_, err = NewAccount("430", "", nil)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNetBalance(t *testing.T) {
	d := decimal.RequireFromString("150.00")
	c := decimal.RequireFromString("40.50")
	assert.True(t, NetBalance(NatureDebit, d, c).Equal(decimal.RequireFromString("109.50")))
	assert.True(t, NetBalance(NatureCredit, d, c).Equal(decimal.RequireFromString("-109.50")))
}
