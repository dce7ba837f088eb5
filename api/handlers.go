/*
handlers.go - HTTP API handlers for the allowance engine

PURPOSE:
  Exposes the allowance calculator via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Calculations:
    POST   /api/calculations           Compute an allowance
    GET    /api/calculations           List past calculations (?country=, ?limit=)
    GET    /api/calculations/{id}      Get one calculation

  Rule definitions:
    GET    /api/rules                  List repository definitions
    GET    /api/rules/{country}        Get one definition
    PUT    /api/rules/{country}        Create or replace a definition
    DELETE /api/rules/{country}        Remove a definition

  Chains:
    GET    /api/chains                 List stored chains
    GET    /api/chains/{country}       Stored chain, or the default one
    PUT    /api/chains/{country}       Store a chain (validated by building it)

  Countries:
    GET    /api/countries              Countries with built-in rules
    POST   /api/defaults               Seed default rule definitions

CHAIN SELECTION (POST /api/calculations):
  1. "chain" in the request body
  2. Stored chain for the country
  3. countries.DefaultChain

ERROR HANDLING:
  - 200: Computed, including denied trips (status "denied")
  - 400: Invalid input or chain
  - 404: Missing rule definition or record
  - 500: Internal errors, including a corrupt stored chain

  Failed calculations are still recorded; the error body carries their "id".

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Default data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/countries"
	"github.com/warp/allowance-engine/factory"
	"github.com/warp/allowance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Factory *factory.ChainFactory
	Logger  *slog.Logger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:   store,
		Factory: factory.NewChainFactory(store),
		Logger:  logger,
	}
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate computes and records an allowance.
// POST /api/calculations
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	if req.Country == "" {
		writeError(w, http.StatusBadRequest, "country is required", nil)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rec, err := h.calculate(r.Context(), req, date)
	if err == nil {
		writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
		return
	}

	status, message := http.StatusInternalServerError, "Failed to calculate allowance"
	switch {
	case allowance.IsNotFound(err):
		status, message = http.StatusNotFound, "Rule definition not found"
	case allowance.IsClientError(err):
		status, message = http.StatusBadRequest, "Invalid rule chain"
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	if rec != nil {
		resp.ID = rec.ID
	}
	writeJSON(w, status, resp)
}

// calculate runs the chain and records the result. A denial is a normal
// result. A rule failure is recorded as failed and returned together with
// the error so the caller can report the record ID.
func (h *Handler) calculate(ctx context.Context, req CalculateRequest, date time.Time) (*sqlite.CalculationRecord, error) {
	rules, err := h.chainFor(ctx, req)
	if err != nil {
		return nil, err
	}

	trip := allowance.NewTripContext(req.Country, date, req.Days, req.Hours)
	calc := allowance.NewCalculator(allowance.Allowance{Value: req.BaseValue}, trip,
		allowance.WithLogger(h.Logger))
	for _, rule := range rules {
		calc.AddRule(rule)
	}

	computeErr := calc.Compute(ctx)

	rec := sqlite.CalculationRecord{
		ID:         uuid.NewString(),
		Country:    req.Country,
		TripDate:   date,
		Days:       req.Days,
		Hours:      req.Hours,
		BaseValue:  req.BaseValue,
		FinalValue: calc.Allowance().Value,
		Status:     sqlite.StatusApplied,
		Steps:      sqlite.StepRecords(calc.Steps()),
		CreatedAt:  time.Now().UTC(),
	}

	var denied *allowance.DeniedError
	switch {
	case computeErr == nil:
	case errors.As(computeErr, &denied):
		rec.Status = sqlite.StatusDenied
		rec.Reason = denied.Reason
	default:
		rec.Status = sqlite.StatusFailed
		rec.Reason = computeErr.Error()
	}

	if err := h.Store.SaveCalculation(ctx, rec); err != nil {
		return nil, err
	}

	h.Logger.InfoContext(ctx, "allowance calculated",
		slog.String("id", rec.ID),
		slog.String("country", rec.Country),
		slog.String("status", string(rec.Status)),
		slog.String("value", rec.FinalValue.String()))

	if rec.Status == sqlite.StatusFailed {
		return &rec, computeErr
	}
	return &rec, nil
}

func (h *Handler) chainFor(ctx context.Context, req CalculateRequest) ([]allowance.Rule, error) {
	if req.Chain != nil {
		chain := *req.Chain
		if chain.Country == "" {
			chain.Country = req.Country
		}
		return h.Factory.Build(chain)
	}

	stored, err := h.Store.GetChain(ctx, req.Country)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		rules, err := h.Factory.BuildFromJSON(stored.ConfigJSON)
		if err != nil {
			// Not the caller's fault; keep it out of IsClientError.
			return nil, fmt.Errorf("stored chain for %s is invalid: %v", req.Country, err)
		}
		return rules, nil
	}

	return countries.DefaultChain(req.Country, h.Store), nil
}

// ListCalculations returns recorded calculations, newest first.
// GET /api/calculations?country=PL&limit=50
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	records, err := h.Store.ListCalculations(r.Context(), r.URL.Query().Get("country"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calculations", err)
		return
	}

	dtos := make([]CalculationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toCalculationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCalculation returns one calculation.
// GET /api/calculations/{id}
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetCalculation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get calculation", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Calculation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*rec))
}

// =============================================================================
// RULE DEFINITION HANDLERS
// =============================================================================

// ListRules returns all repository rule definitions.
// GET /api/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Store.ListRuleDefinitions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDefinitionDTO, len(defs))
	for i, def := range defs {
		dtos[i] = toRuleDefinitionDTO(def)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns the definition for one country.
// GET /api/rules/{country}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	def, err := h.Store.RuleForCountry(r.Context(), chi.URLParam(r, "country"))
	if allowance.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Rule definition not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDefinitionDTO(def))
}

// SaveRule creates or replaces a country's definition.
// PUT /api/rules/{country}
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var req SaveRuleDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.DaysThreshold == nil || req.Factor == nil {
		writeError(w, http.StatusBadRequest, "days_threshold and factor are required", nil)
		return
	}

	def := allowance.RuleDefinition{
		Country:       strings.ToUpper(chi.URLParam(r, "country")),
		DaysThreshold: *req.DaysThreshold,
		Factor:        *req.Factor,
	}
	if err := h.Store.SaveRuleDefinition(r.Context(), def); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDefinitionDTO(def))
}

// DeleteRule removes a country's definition.
// DELETE /api/rules/{country}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	err := h.Store.DeleteRuleDefinition(r.Context(), chi.URLParam(r, "country"))
	if allowance.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Rule definition not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// CHAIN HANDLERS
// =============================================================================

// ListChains returns all stored chains.
// GET /api/chains
func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListChains(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list chains", err)
		return
	}

	dtos := make([]ChainDTO, 0, len(records))
	for _, rec := range records {
		cj, err := h.Factory.ParseChain(rec.ConfigJSON)
		if err != nil {
			h.Logger.Warn("skipping unparsable chain", slog.String("country", rec.Country), slog.Any("error", err))
			continue
		}
		dtos = append(dtos, ChainDTO{
			Country:   rec.Country,
			Chain:     cj,
			Source:    "stored",
			UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetChain returns the chain used for a country.
// GET /api/chains/{country}
func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(chi.URLParam(r, "country"))

	rec, err := h.Store.GetChain(r.Context(), country)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get chain", err)
		return
	}

	dto := ChainDTO{Country: country, Source: "default"}
	configJSON := factory.DefaultChainJSON(country)
	if rec != nil {
		dto.Source = "stored"
		dto.UpdatedAt = rec.UpdatedAt.Format(time.RFC3339)
		configJSON = rec.ConfigJSON
	}

	dto.Chain, err = h.Factory.ParseChain(configJSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored chain is invalid", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// SaveChain validates and stores a chain.
// PUT /api/chains/{country}
func (h *Handler) SaveChain(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(chi.URLParam(r, "country"))

	var cj factory.ChainJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cj.Country = country

	if _, err := h.Factory.Build(cj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule chain", err)
		return
	}

	b, err := json.Marshal(cj)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode chain", err)
		return
	}
	if err := h.Store.SaveChain(r.Context(), country, string(b)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save chain", err)
		return
	}
	writeJSON(w, http.StatusOK, ChainDTO{Country: country, Chain: cj, Source: "stored"})
}

// =============================================================================
// COUNTRY HANDLERS
// =============================================================================

// ListCountries returns the countries with built-in rules.
// GET /api/countries
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	codes := countries.Supported()
	dtos := make([]CountryDTO, 0, len(codes))
	for _, code := range codes {
		cj, err := h.Factory.ParseChain(factory.DefaultChainJSON(code))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to build default chain", err)
			return
		}
		dtos = append(dtos, CountryDTO{Code: code, DefaultChain: cj})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SeedDefaults stores the default rule definitions.
// POST /api/defaults
func (h *Handler) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	n, err := SeedDefaults(r.Context(), h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed defaults", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"count":  n,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

