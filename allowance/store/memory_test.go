package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/allowance/store"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.RuleForCountry(ctx, "FR")
	assert.ErrorIs(t, err, allowance.ErrRuleNotFound)

	m.Put(allowance.RuleDefinition{Country: " fr ", DaysThreshold: 4, Factor: decimal.RequireFromString("1.5")})

	def, err := m.RuleForCountry(ctx, "Fr")
	require.NoError(t, err)
	assert.Equal(t, "FR", def.Country)
	assert.Equal(t, 4, def.DaysThreshold)
	assert.True(t, def.Factor.Equal(decimal.RequireFromString("1.5")))

	m.Delete("fr")
	_, err = m.RuleForCountry(ctx, "FR")
	assert.True(t, allowance.IsNotFound(err))
}

func TestMemory_ListSorted(t *testing.T) {
	m := store.NewMemory(
		allowance.RuleDefinition{Country: "PL", DaysThreshold: 7, Factor: decimal.NewFromInt(2)},
		allowance.RuleDefinition{Country: "DE", DaysThreshold: 7, Factor: decimal.RequireFromString("1.75")},
	)

	defs := m.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "DE", defs[0].Country)
	assert.Equal(t, "PL", defs[1].Country)
}
