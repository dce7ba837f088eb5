/*
seed.go - Default data loader

PURPOSE:
  Populates the store with the default repository definitions so that
  repository-driven chains resolve for the preset countries. Used by the
  -seed flag on startup and by POST /api/defaults.

Seeding is idempotent: existing definitions for the same country are
replaced with the defaults.
*/
package api

import (
	"context"
	"fmt"

	"github.com/warp/allowance-engine/countries"
	"github.com/warp/allowance-engine/store/sqlite"
)

// SeedDefaults writes countries.DefaultDefinitions and returns how many
// were written.
func SeedDefaults(ctx context.Context, store *sqlite.Store) (int, error) {
	defs := countries.DefaultDefinitions()
	for _, def := range defs {
		if err := store.SaveRuleDefinition(ctx, def); err != nil {
			return 0, fmt.Errorf("seed %s: %w", def.Country, err)
		}
	}
	return len(defs), nil
}
