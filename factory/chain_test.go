package factory_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/allowance/store"
	"github.com/warp/allowance-engine/factory"
)

var (
	monday = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	friday = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
)

func run(t *testing.T, rules []allowance.Rule, tc allowance.TripContext, base int64) (allowance.Allowance, error) {
	t.Helper()
	calc := allowance.NewCalculator(allowance.NewAllowanceFromInt(base), tc)
	for _, r := range rules {
		calc.AddRule(r)
	}
	err := calc.Compute(context.Background())
	return calc.Allowance(), err
}

func TestParseChain_AllRuleTypes(t *testing.T) {
	repo := store.NewMemory(allowance.RuleDefinition{Country: "ES", DaysThreshold: 10, Factor: decimal.NewFromInt(3)})
	f := factory.NewChainFactory(repo)

	rules, err := f.BuildFromJSON(`{
		"country": "ES",
		"rules": [
			{"type": "general", "min_hours": 6, "weekend_days": [0]},
			{"type": "tiered_reduction", "tiers": [{"after_days": 3, "amount": "50"}, {"after_days": 5, "amount": 25}]},
			{"type": "fixed_factor", "days_threshold": 7, "factor": "2"},
			{"type": "repository"},
			{"type": "country"}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, rules, 5)

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name()
	}
	assert.Equal(t, []string{
		"general", "tiered_reduction:ES", "fixed_factor:ES", "repository", "tiered_reduction:ES",
	}, names)

	general, ok := rules[0].(*allowance.GeneralRule)
	require.True(t, ok)
	assert.Equal(t, 6, general.MinHours)
	assert.Equal(t, []time.Weekday{time.Sunday}, general.WeekendDays)

	// 11 days, base 200: -50 -25 = 125, x2 = 250, x3 = 750, -50 -25 = 675
	got, err := run(t, rules, allowance.NewTripContext("ES", monday, 11, 6), 200)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(675).Equal(got.Value), "got %s", got)
}

func TestBuild_GeneralDefaults(t *testing.T) {
	f := factory.NewChainFactory(nil)

	rules, err := f.BuildFromJSON(`{"country":"PL","rules":[{"type":"general"},{"type":"country"}]}`)
	require.NoError(t, err)

	general := rules[0].(*allowance.GeneralRule)
	assert.Equal(t, allowance.DefaultMinHours, general.MinHours)
	assert.Equal(t, allowance.DefaultWeekendDays, general.WeekendDays)

	got, err := run(t, rules, allowance.NewTripContext("PL", friday, 8, 8), 100)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(got.Value))
}

func TestBuild_EmptyWeekendSurvivesReencoding(t *testing.T) {
	f := factory.NewChainFactory(nil)
	saturday := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)

	cj, err := f.ParseChain(`{"country":"PL","rules":[{"type":"general","weekend_days":[]},{"type":"country"}]}`)
	require.NoError(t, err)

	b, err := json.Marshal(cj)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"weekend_days":[]`)

	rules, err := f.BuildFromJSON(string(b))
	require.NoError(t, err)
	general := rules[0].(*allowance.GeneralRule)
	assert.Empty(t, general.WeekendDays)

	got, err := run(t, rules, allowance.NewTripContext("PL", saturday, 8, 9), 100)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(got.Value), "got %s", got)
}

func TestBuild_Errors(t *testing.T) {
	f := factory.NewChainFactory(nil)

	tests := []struct {
		name    string
		json    string
		wantErr error
	}{
		{"malformed", `{"rules": [`, allowance.ErrInvalidChain},
		{"empty chain", `{"country":"PL","rules":[]}`, allowance.ErrInvalidChain},
		{"unknown type", `{"country":"PL","rules":[{"type":"bonus"}]}`, allowance.ErrUnknownRuleType},
		{"factor missing", `{"country":"PL","rules":[{"type":"fixed_factor","days_threshold":7}]}`, allowance.ErrInvalidChain},
		{"no tiers", `{"country":"ES","rules":[{"type":"tiered_reduction"}]}`, allowance.ErrInvalidChain},
		{"no repository", `{"country":"FR","rules":[{"type":"repository"}]}`, allowance.ErrInvalidChain},
		{"no preset", `{"country":"FR","rules":[{"type":"country"}]}`, allowance.ErrInvalidChain},
		{"bad weekday", `{"country":"PL","rules":[{"type":"general","weekend_days":[7]}]}`, allowance.ErrInvalidChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.BuildFromJSON(tt.json)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, allowance.IsClientError(err))
		})
	}
}

func TestDefaultChainJSON(t *testing.T) {
	f := factory.NewChainFactory(store.NewMemory())

	cj, err := f.ParseChain(factory.DefaultChainJSON("de"))
	require.NoError(t, err)
	assert.Equal(t, "DE", cj.Country)
	require.Len(t, cj.Rules, 2)
	assert.Equal(t, factory.TypeGeneral, cj.Rules[0].Type)
	assert.Equal(t, factory.TypeCountry, cj.Rules[1].Type)

	cj, err = f.ParseChain(factory.DefaultChainJSON("FR"))
	require.NoError(t, err)
	assert.Equal(t, factory.TypeRepository, cj.Rules[1].Type)

	_, err = f.Build(cj)
	assert.NoError(t, err)
}
