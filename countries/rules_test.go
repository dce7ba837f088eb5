package countries_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/allowance/store"
	"github.com/warp/allowance-engine/countries"
)

var monday = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func compute(t *testing.T, rules []allowance.Rule, country string, days int, base int64) (allowance.Allowance, error) {
	t.Helper()
	calc := allowance.NewCalculator(allowance.NewAllowanceFromInt(base),
		allowance.NewTripContext(country, monday, days, 8))
	for _, r := range rules {
		calc.AddRule(r)
	}
	err := calc.Compute(context.Background())
	return calc.Allowance(), err
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name     string
		rule     allowance.Rule
		days     int
		expected string
	}{
		{"PL long trip", countries.RulePL(), 8, "200"},
		{"PL one week", countries.RulePL(), 7, "100"},
		{"DE long trip", countries.RuleDE(), 8, "175"},
		{"DE one week", countries.RuleDE(), 7, "100"},
		{"ES four days", countries.RuleES(), 4, "50"},
		{"ES six days", countries.RuleES(), 6, "25"},
		{"ES three days", countries.RuleES(), 3, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compute(t, []allowance.Rule{tt.rule}, "XX", tt.days, 100)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got.Value), "got %s", got)
		})
	}
}

func TestForCountry(t *testing.T) {
	for _, code := range []string{"PL", "de", "Es"} {
		rule, ok := countries.ForCountry(code)
		assert.True(t, ok, code)
		assert.NotNil(t, rule)
	}

	_, ok := countries.ForCountry("FR")
	assert.False(t, ok)

	assert.Equal(t, []string{"DE", "ES", "PL"}, countries.Supported())
}

func TestDefaultChain_PresetCountry(t *testing.T) {
	chain := countries.DefaultChain("PL", store.NewMemory())
	require.Len(t, chain, 2)
	assert.Equal(t, "general", chain[0].Name())
	assert.Equal(t, "fixed_factor:PL", chain[1].Name())
}

func TestDefaultChain_FallsBackToRepository(t *testing.T) {
	repo := store.NewMemory(allowance.RuleDefinition{Country: "FR", DaysThreshold: 2, Factor: decimal.NewFromInt(3)})

	chain := countries.DefaultChain("FR", repo)
	require.Len(t, chain, 2)
	assert.Equal(t, "repository", chain[1].Name())

	got, err := compute(t, chain, "FR", 3, 100)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(got.Value))

	_, err = compute(t, countries.DefaultChain("IT", repo), "IT", 3, 100)
	assert.ErrorIs(t, err, allowance.ErrRuleNotFound)
}

func TestDefaultDefinitions_MatchPresets(t *testing.T) {
	repo := store.NewMemory(countries.DefaultDefinitions()...)
	rule := allowance.NewRepositoryDrivenRule(repo)

	for _, code := range []string{countries.Poland, countries.Germany} {
		preset, _ := countries.ForCountry(code)

		fromRepo, err := compute(t, []allowance.Rule{rule}, code, 10, 80)
		require.NoError(t, err)
		fromPreset, err := compute(t, []allowance.Rule{preset}, code, 10, 80)
		require.NoError(t, err)

		assert.True(t, fromRepo.Equal(fromPreset), "%s: %s vs %s", code, fromRepo, fromPreset)
	}
}
