// Package strategy defines the Strategy interface for entry rules, a Registry
// for selecting them by name, and the Backtester that runs a named strategy
// over stored bars.
package strategy

import (
	"sort"
	"time"

	"swingtrader/internal/series"
)

// Strategy is an entry rule evaluated once per instrument per day.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Signal reports whether s shows an entry setup on date. Indicator
	// failures are treated as no signal.
	Signal(s *series.PriceSeries, date time.Time) bool

	// Lookback is the number of bars the rule needs before it can fire.
	Lookback() int
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
