// Package store provides RuleRepository implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/allowance-engine/allowance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	definitions map[string]allowance.RuleDefinition
}

func NewMemory(defs ...allowance.RuleDefinition) *Memory {
	m := &Memory{definitions: make(map[string]allowance.RuleDefinition)}
	for _, def := range defs {
		m.putLocked(def)
	}
	return m
}

// RuleForCountry implements allowance.RuleRepository.
func (m *Memory) RuleForCountry(_ context.Context, country string) (allowance.RuleDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.definitions[normalize(country)]
	if !ok {
		return allowance.RuleDefinition{}, &allowance.RuleNotFoundError{Country: country}
	}
	return def, nil
}

// Put adds or replaces the definition for def.Country.
func (m *Memory) Put(def allowance.RuleDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(def)
}

func (m *Memory) putLocked(def allowance.RuleDefinition) {
	def.Country = normalize(def.Country)
	m.definitions[def.Country] = def
}

// Delete removes a country's definition. Missing countries are ignored.
func (m *Memory) Delete(country string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.definitions, normalize(country))
}

// List returns all definitions sorted by country.
func (m *Memory) List() []allowance.RuleDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]allowance.RuleDefinition, 0, len(m.definitions))
	for _, def := range m.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

func normalize(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

var _ allowance.RuleRepository = (*Memory)(nil)
