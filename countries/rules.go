/*
Package countries provides the per-country allowance rules.

PURPOSE:
  Ready-to-use rule configurations for the countries with fixed rules,
  plus the default chain used when a country has no stored chain.

AVAILABLE RULES:
  PL: Allowance doubles for trips longer than 7 days
  DE: Allowance x1.75 for trips longer than 7 days
  ES: -50 for trips longer than 3 days, a further -25 beyond 5 days

DEFAULT CHAIN:
  Every chain starts with the GeneralRule eligibility gate. Countries with
  a preset follow it with their rule; any other country falls back to the
  RepositoryDrivenRule, which fails with RuleNotFound if the repository
  has no definition either.

EXAMPLE:
  calc := allowance.NewCalculator(base, trip)
  for _, r := range countries.DefaultChain(trip.Country(), repo) {
      calc.AddRule(r)
  }

SEE ALSO:
  - allowance/rules.go: Rule variants used here
  - factory/chain.go: JSON chains that reference these presets
*/
package countries

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/allowance-engine/allowance"
)

// Country codes with built-in rules.
const (
	Poland  = "PL"
	Germany = "DE"
	Spain   = "ES"
)

// LongTripDays is the threshold shared by the PL and DE rules.
const LongTripDays = 7

// RulePL doubles the allowance for trips longer than a week.
func RulePL() *allowance.FixedFactorRule {
	return allowance.NewFixedFactorRule(Poland, LongTripDays, decimal.NewFromInt(2))
}

// RuleDE multiplies the allowance by 1.75 for trips longer than a week.
func RuleDE() *allowance.FixedFactorRule {
	return allowance.NewFixedFactorRule(Germany, LongTripDays, decimal.RequireFromString("1.75"))
}

// RuleES reduces the allowance by 50 beyond 3 days and by another 25
// beyond 5 days.
func RuleES() *allowance.TieredReductionRule {
	return allowance.NewTieredReductionRule(Spain,
		allowance.ReductionTier{AfterDays: 3, Amount: decimal.NewFromInt(50)},
		allowance.ReductionTier{AfterDays: 5, Amount: decimal.NewFromInt(25)},
	)
}

var presets = map[string]func() allowance.Rule{
	Poland:  func() allowance.Rule { return RulePL() },
	Germany: func() allowance.Rule { return RuleDE() },
	Spain:   func() allowance.Rule { return RuleES() },
}

// ForCountry returns a fresh preset rule for the country, if one exists.
func ForCountry(country string) (allowance.Rule, bool) {
	build, ok := presets[strings.ToUpper(country)]
	if !ok {
		return nil, false
	}
	return build(), true
}

// Supported lists the countries with presets, sorted.
func Supported() []string {
	out := make([]string, 0, len(presets))
	for code := range presets {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// DefaultChain returns GeneralRule followed by the country's preset, or by
// a RepositoryDrivenRule over repo when there is no preset.
func DefaultChain(country string, repo allowance.RuleRepository) []allowance.Rule {
	chain := []allowance.Rule{allowance.NewGeneralRule()}
	if rule, ok := ForCountry(country); ok {
		return append(chain, rule)
	}
	return append(chain, allowance.NewRepositoryDrivenRule(repo))
}

// DefaultDefinitions are repository entries matching the factor presets.
// Seeded into stores so repository-driven chains work out of the box.
func DefaultDefinitions() []allowance.RuleDefinition {
	return []allowance.RuleDefinition{
		{Country: Germany, DaysThreshold: LongTripDays, Factor: decimal.RequireFromString("1.75")},
		{Country: Poland, DaysThreshold: LongTripDays, Factor: decimal.NewFromInt(2)},
	}
}
