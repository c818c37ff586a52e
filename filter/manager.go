package filter

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Manager holds named filter presets
type Manager struct {
	compiler  Compiler
	evaluator *Evaluator
	filters   map[string]CompiledFilter
	mu        sync.RWMutex
}

// ManagerOption configures a filter manager
type ManagerOption func(*Manager)

// WithCompiler sets a custom compiler
func WithCompiler(compiler Compiler) ManagerOption {
	return func(m *Manager) {
		m.compiler = compiler
	}
}

// WithEvaluator sets a custom evaluator
func WithEvaluator(evaluator *Evaluator) ManagerOption {
	return func(m *Manager) {
		m.evaluator = evaluator
	}
}

// NewManager creates a new filter manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		compiler:  NewExprCompiler(WithCache(100)),
		evaluator: NewEvaluator(),
		filters:   make(map[string]CompiledFilter),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// RegisterFilter registers a new filter or updates an existing one
func (m *Manager) RegisterFilter(name, expression string) error {
	filter, err := m.compiler.Compile(expression)
	if err != nil {
		return fmt.Errorf("failed to compile filter '%s': %w", name, err)
	}

	m.mu.Lock()
	m.filters[name] = filter
	m.mu.Unlock()

	return nil
}

// RegisterFilters registers multiple filters at once. Nothing is
// registered if any expression fails to compile.
func (m *Manager) RegisterFilters(filters map[string]string) error {
	compiled := make(map[string]CompiledFilter, len(filters))

	// Sorted so the reported failure is stable
	for _, name := range slices.Sorted(maps.Keys(filters)) {
		filter, err := m.compiler.Compile(filters[name])
		if err != nil {
			return fmt.Errorf("failed to compile filter '%s': %w", name, err)
		}
		compiled[name] = filter
	}

	m.mu.Lock()
	maps.Copy(m.filters, compiled)
	m.mu.Unlock()

	return nil
}

// UnregisterFilter removes a filter
func (m *Manager) UnregisterFilter(name string) {
	m.mu.Lock()
	delete(m.filters, name)
	m.mu.Unlock()
}

// GetFilter returns a compiled filter by name
func (m *Manager) GetFilter(name string) (CompiledFilter, bool) {
	m.mu.RLock()
	filter, exists := m.filters[name]
	m.mu.RUnlock()
	return filter, exists
}

// ListFilters returns all registered filter names, sorted
func (m *Manager) ListFilters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.filters))
}

// Resolve picks the filter for a command: an inline expression wins over a
// preset name. Both empty yields a nil filter.
func (m *Manager) Resolve(expression, preset string) (CompiledFilter, error) {
	if strings.TrimSpace(expression) != "" {
		return m.compiler.Compile(expression)
	}
	if preset == "" {
		return nil, nil
	}

	filter, ok := m.GetFilter(preset)
	if !ok {
		return nil, fmt.Errorf("filter preset '%s' not found (available: %s)", preset, strings.Join(m.ListFilters(), ", "))
	}
	return filter, nil
}

// Evaluator returns the evaluator used by Select and ApplyNamed
func (m *Manager) Evaluator() *Evaluator {
	return m.evaluator
}

// Select applies f to items, returning them unchanged when f is nil
func Select[T any](ctx context.Context, m *Manager, f CompiledFilter, items []T, envFn EnvFunc[T]) ([]T, error) {
	if f == nil {
		return items, nil
	}
	return Apply(ctx, m.evaluator, f, items, envFn)
}

// ApplyNamed applies a registered filter
func ApplyNamed[T any](ctx context.Context, m *Manager, name string, items []T, envFn EnvFunc[T]) ([]T, error) {
	filter, exists := m.GetFilter(name)
	if !exists {
		return nil, fmt.Errorf("filter '%s' not found", name)
	}

	return Apply(ctx, m.evaluator, filter, items, envFn)
}
