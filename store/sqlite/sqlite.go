/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements allowance.RuleRepository and persists rule chains and
  calculation records using SQLite.

INTERFACES IMPLEMENTED:
  allowance.RuleRepository: Country rule definitions

KEY TABLES:
  rule_definitions: Days threshold + factor per country
  chains:           JSON chain definition per country (factory schema)
  calculations:     Append-only record of every computed allowance

DECIMALS:
  Factors and values are stored as TEXT (decimal.Decimal.String()) so they
  round-trip exactly. Never REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Rule lookups take the read lock and
  may run concurrently.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so lookups don't block
  behind calculation inserts.

USAGE:
  store, err := sqlite.New("./data/allowance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  rule := allowance.NewRepositoryDrivenRule(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - allowance/rule.go: RuleRepository interface
  - allowance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/allowance-engine/allowance"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Rule definitions (RepositoryDrivenRule parameters)
	CREATE TABLE IF NOT EXISTS rule_definitions (
		country TEXT PRIMARY KEY,
		days_threshold INTEGER NOT NULL,
		factor TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Chains (factory JSON per country)
	CREATE TABLE IF NOT EXISTS chains (
		country TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Calculations (append-only)
	CREATE TABLE IF NOT EXISTS calculations (
		id TEXT PRIMARY KEY,
		country TEXT NOT NULL,
		trip_date TEXT NOT NULL,
		days INTEGER NOT NULL,
		hours INTEGER NOT NULL,
		base_value TEXT NOT NULL,
		final_value TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		steps_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calculations_country
		ON calculations(country);
	CREATE INDEX IF NOT EXISTS idx_calculations_created_at
		ON calculations(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE DEFINITIONS (allowance.RuleRepository interface)
// =============================================================================

// RuleForCountry returns the definition for a country or a
// *allowance.RuleNotFoundError.
func (s *Store) RuleForCountry(ctx context.Context, country string) (allowance.RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		def    allowance.RuleDefinition
		factor string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT country, days_threshold, factor FROM rule_definitions WHERE country = ?",
		normalizeCountry(country),
	).Scan(&def.Country, &def.DaysThreshold, &factor)
	if errors.Is(err, sql.ErrNoRows) {
		return allowance.RuleDefinition{}, &allowance.RuleNotFoundError{Country: country}
	}
	if err != nil {
		return allowance.RuleDefinition{}, fmt.Errorf("failed to get rule definition: %w", err)
	}

	def.Factor, err = decimal.NewFromString(factor)
	if err != nil {
		return allowance.RuleDefinition{}, fmt.Errorf("corrupt factor %q for %s: %w", factor, def.Country, err)
	}
	return def, nil
}

// SaveRuleDefinition inserts or replaces a country's definition.
func (s *Store) SaveRuleDefinition(ctx context.Context, def allowance.RuleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_definitions (country, days_threshold, factor, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(country) DO UPDATE SET
			days_threshold = excluded.days_threshold,
			factor = excluded.factor,
			updated_at = excluded.updated_at
	`,
		normalizeCountry(def.Country),
		def.DaysThreshold,
		def.Factor.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule definition: %w", err)
	}
	return nil
}

// DeleteRuleDefinition removes a definition. Returns a RuleNotFoundError if
// the country had none.
func (s *Store) DeleteRuleDefinition(ctx context.Context, country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rule_definitions WHERE country = ?", normalizeCountry(country))
	if err != nil {
		return fmt.Errorf("failed to delete rule definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &allowance.RuleNotFoundError{Country: country}
	}
	return nil
}

// ListRuleDefinitions returns all definitions ordered by country.
func (s *Store) ListRuleDefinitions(ctx context.Context) ([]allowance.RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT country, days_threshold, factor FROM rule_definitions ORDER BY country")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule definitions: %w", err)
	}
	defer rows.Close()

	var defs []allowance.RuleDefinition
	for rows.Next() {
		var (
			def    allowance.RuleDefinition
			factor string
		)
		if err := rows.Scan(&def.Country, &def.DaysThreshold, &factor); err != nil {
			return nil, fmt.Errorf("failed to scan rule definition: %w", err)
		}
		def.Factor = parseDecimal(factor)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// =============================================================================
// CHAINS
// =============================================================================

// ChainRecord is a stored chain definition.
type ChainRecord struct {
	Country    string
	ConfigJSON string
	UpdatedAt  time.Time
}

// SaveChain inserts or replaces a country's chain JSON.
func (s *Store) SaveChain(ctx context.Context, country, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chains (country, config_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(country) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, normalizeCountry(country), configJSON, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save chain: %w", err)
	}
	return nil
}

// GetChain returns the chain for a country, or nil if none is stored.
func (s *Store) GetChain(ctx context.Context, country string) (*ChainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec       ChainRecord
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT country, config_json, updated_at FROM chains WHERE country = ?",
		normalizeCountry(country),
	).Scan(&rec.Country, &rec.ConfigJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// ListChains returns all stored chains ordered by country.
func (s *Store) ListChains(ctx context.Context) ([]ChainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT country, config_json, updated_at FROM chains ORDER BY country")
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	defer rows.Close()

	var records []ChainRecord
	for rows.Next() {
		var (
			rec       ChainRecord
			updatedAt string
		)
		if err := rows.Scan(&rec.Country, &rec.ConfigJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// CALCULATIONS (append-only)
// =============================================================================

type CalculationStatus string

const (
	StatusApplied CalculationStatus = "applied"
	StatusDenied  CalculationStatus = "denied"
	StatusFailed  CalculationStatus = "failed"
)

// CalculationRecord is one persisted allowance computation.
type CalculationRecord struct {
	ID         string
	Country    string
	TripDate   time.Time
	Days       int
	Hours      int
	BaseValue  decimal.Decimal
	FinalValue decimal.Decimal
	Status     CalculationStatus
	Reason     string
	Steps      []StepRecord
	CreatedAt  time.Time
}

// StepRecord is the stored form of allowance.Step.
type StepRecord struct {
	Rule   string          `json:"rule"`
	Kind   string          `json:"kind"`
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
	Reason string          `json:"reason,omitempty"`
}

// StepRecords converts a calculator trace for storage.
func StepRecords(steps []allowance.Step) []StepRecord {
	out := make([]StepRecord, len(steps))
	for i, st := range steps {
		out[i] = StepRecord{
			Rule:   st.Rule,
			Kind:   string(st.Kind),
			Before: st.Before.Value,
			After:  st.After.Value,
			Reason: st.Reason,
		}
	}
	return out
}

// SaveCalculation appends a calculation record.
func (s *Store) SaveCalculation(ctx context.Context, rec CalculationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepsJSON, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculations
		(id, country, trip_date, days, hours, base_value, final_value, status, reason, steps_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		normalizeCountry(rec.Country),
		rec.TripDate.Format("2006-01-02"),
		rec.Days,
		rec.Hours,
		rec.BaseValue.String(),
		rec.FinalValue.String(),
		rec.Status,
		nullString(rec.Reason),
		string(stepsJSON),
		createdAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}
	return nil
}

// timestampLayout has fixed width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const calculationColumns = `id, country, trip_date, days, hours, base_value, final_value,
	status, reason, steps_json, created_at`

// GetCalculation returns a calculation by ID, or nil if not found.
func (s *Store) GetCalculation(ctx context.Context, id string) (*CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+calculationColumns+" FROM calculations WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanCalculation(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCalculations returns calculations newest first. An empty country
// lists all countries; limit <= 0 means no limit.
func (s *Store) ListCalculations(ctx context.Context, country string, limit int) ([]CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + calculationColumns + " FROM calculations"
	var args []any
	if country != "" {
		query += " WHERE country = ?"
		args = append(args, normalizeCountry(country))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	defer rows.Close()

	var records []CalculationRecord
	for rows.Next() {
		rec, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanCalculation(rows *sql.Rows) (CalculationRecord, error) {
	var (
		rec        CalculationRecord
		tripDate   string
		baseValue  string
		finalValue string
		reason     sql.NullString
		stepsJSON  sql.NullString
		createdAt  string
	)

	err := rows.Scan(
		&rec.ID, &rec.Country, &tripDate, &rec.Days, &rec.Hours,
		&baseValue, &finalValue, &rec.Status, &reason, &stepsJSON, &createdAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan calculation: %w", err)
	}

	rec.TripDate, _ = time.Parse("2006-01-02", tripDate)
	rec.BaseValue = parseDecimal(baseValue)
	rec.FinalValue = parseDecimal(finalValue)
	rec.Reason = reason.String
	rec.CreatedAt, _ = time.Parse(timestampLayout, createdAt)

	if stepsJSON.Valid && stepsJSON.String != "" {
		if err := json.Unmarshal([]byte(stepsJSON.String), &rec.Steps); err != nil {
			return rec, fmt.Errorf("failed to decode steps: %w", err)
		}
	}

	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ allowance.RuleRepository = (*Store)(nil)
