package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// RULE DEFINITIONS
// =============================================================================

func TestRuleDefinitions_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RuleForCountry(ctx, "DE")
	require.Error(t, err)
	assert.ErrorIs(t, err, allowance.ErrRuleNotFound)

	require.NoError(t, store.SaveRuleDefinition(ctx, allowance.RuleDefinition{
		Country: "de", DaysThreshold: 7, Factor: decimal.RequireFromString("1.75"),
	}))

	def, err := store.RuleForCountry(ctx, "De")
	require.NoError(t, err)
	assert.Equal(t, "DE", def.Country)
	assert.Equal(t, 7, def.DaysThreshold)
	assert.Equal(t, "1.75", def.Factor.String())
}

func TestRuleDefinitions_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRuleDefinition(ctx, allowance.RuleDefinition{Country: "PL", DaysThreshold: 7, Factor: decimal.NewFromInt(2)}))
	require.NoError(t, store.SaveRuleDefinition(ctx, allowance.RuleDefinition{Country: "PL", DaysThreshold: 5, Factor: decimal.RequireFromString("2.5")}))

	defs, err := store.ListRuleDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, 5, defs[0].DaysThreshold)
	assert.True(t, defs[0].Factor.Equal(decimal.RequireFromString("2.5")))
}

func TestRuleDefinitions_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.DeleteRuleDefinition(ctx, "PL")
	assert.True(t, allowance.IsNotFound(err))

	require.NoError(t, store.SaveRuleDefinition(ctx, allowance.RuleDefinition{Country: "PL", DaysThreshold: 7, Factor: decimal.NewFromInt(2)}))
	require.NoError(t, store.DeleteRuleDefinition(ctx, "pl"))

	_, err = store.RuleForCountry(ctx, "PL")
	assert.True(t, allowance.IsNotFound(err))
}

func TestStore_BacksRepositoryDrivenRule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRuleDefinition(ctx, allowance.RuleDefinition{Country: "FR", DaysThreshold: 3, Factor: decimal.RequireFromString("1.2")}))

	calc := allowance.NewCalculator(allowance.NewAllowanceFromInt(50),
		allowance.NewTripContext("FR", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), 4, 8))
	calc.AddRule(allowance.NewRepositoryDrivenRule(store))

	require.NoError(t, calc.Compute(ctx))
	assert.True(t, decimal.NewFromInt(60).Equal(calc.Allowance().Value))
}

// =============================================================================
// CHAINS
// =============================================================================

func TestChains(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.GetChain(ctx, "PL")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.SaveChain(ctx, "pl", `{"country":"PL","rules":[{"type":"general"}]}`))
	require.NoError(t, store.SaveChain(ctx, "PL", `{"country":"PL","rules":[{"type":"country"}]}`))
	require.NoError(t, store.SaveChain(ctx, "DE", `{"country":"DE","rules":[{"type":"country"}]}`))

	rec, err = store.GetChain(ctx, "PL")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Contains(t, rec.ConfigJSON, `"country"}`)
	assert.False(t, rec.UpdatedAt.IsZero())

	all, err := store.ListChains(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "DE", all[0].Country)
	assert.Equal(t, "PL", all[1].Country)
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func TestCalculations_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	records := []sqlite.CalculationRecord{
		{
			ID: "calc-1", Country: "PL", TripDate: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
			Days: 8, Hours: 8, BaseValue: decimal.NewFromInt(100), FinalValue: decimal.NewFromInt(200),
			Status: sqlite.StatusApplied, CreatedAt: base,
			Steps: []sqlite.StepRecord{
				{Rule: "general", Kind: "unchanged", Before: decimal.NewFromInt(100), After: decimal.NewFromInt(100)},
				{Rule: "fixed_factor:PL", Kind: "applied", Before: decimal.NewFromInt(100), After: decimal.NewFromInt(200)},
			},
		},
		{
			ID: "calc-2", Country: "DE", TripDate: time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC),
			Days: 2, Hours: 8, BaseValue: decimal.NewFromInt(100), FinalValue: decimal.NewFromInt(100),
			Status: sqlite.StatusDenied, Reason: "trip on saturday", CreatedAt: base.Add(time.Hour),
		},
	}
	for _, rec := range records {
		require.NoError(t, store.SaveCalculation(ctx, rec))
	}

	got, err := store.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PL", got.Country)
	assert.Equal(t, sqlite.StatusApplied, got.Status)
	assert.Equal(t, 8, got.Days)
	assert.True(t, got.FinalValue.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "2025-03-10", got.TripDate.Format("2006-01-02"))
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "fixed_factor:PL", got.Steps[1].Rule)
	assert.True(t, got.Steps[1].After.Equal(decimal.NewFromInt(200)))

	missing, err := store.GetCalculation(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.ListCalculations(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "calc-2", all[0].ID, "newest first")
	assert.Equal(t, "trip on saturday", all[0].Reason)

	onlyPL, err := store.ListCalculations(ctx, "pl", 10)
	require.NoError(t, err)
	require.Len(t, onlyPL, 1)
	assert.Equal(t, "calc-1", onlyPL[0].ID)

	limited, err := store.ListCalculations(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCalculations_DuplicateIDRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sqlite.CalculationRecord{ID: "calc-1", Country: "PL", Status: sqlite.StatusApplied}
	require.NoError(t, store.SaveCalculation(ctx, rec))
	assert.Error(t, store.SaveCalculation(ctx, rec))
}
