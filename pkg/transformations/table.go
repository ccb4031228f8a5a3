package transformations

import (
	"fmt"
	"sort"
	"sync"
)

// Func is a single transformation step. It receives a private copy of the
// data produced by the previous step and returns the data for the next one.
type Func func(data interface{}) (interface{}, error)

// Lookup resolves a transformer by domain, version and name
type Lookup interface {
	Resolve(domain, version, name string) (Func, bool)
}

// Namespace returns the lookup namespace of a domain version
func Namespace(domain, version string) string {
	return fmt.Sprintf("clusterupgrade.transformations.%s.%s", domain, version)
}

// Table is a registration table of transformers keyed by namespace and name.
// Domain packages populate the default table from their init functions.
type Table struct {
	mu      sync.RWMutex
	entries map[string]map[string]Func
}

// NewTable creates an empty registration table
func NewTable() *Table {
	return &Table{
		entries: make(map[string]map[string]Func),
	}
}

var defaultTable = NewTable()

// DefaultTable returns the process-wide registration table
func DefaultTable() *Table {
	return defaultTable
}

// Register adds fn to the default table. It panics if the name is already
// registered for the domain version.
func Register(domain, version, name string, fn Func) {
	defaultTable.Register(domain, version, name, fn)
}

// Register adds fn under domain, version and name. It panics if fn is nil or
// the name is already taken in that namespace.
func (t *Table) Register(domain, version, name string, fn Func) {
	if fn == nil {
		panic(fmt.Sprintf("transformations: nil transformer %s in %s", name, Namespace(domain, version)))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ns := Namespace(domain, version)
	if t.entries[ns] == nil {
		t.entries[ns] = make(map[string]Func)
	}
	if _, exists := t.entries[ns][name]; exists {
		panic(fmt.Sprintf("transformations: duplicate transformer %s in %s", name, ns))
	}
	t.entries[ns][name] = fn
}

// Resolve implements Lookup
func (t *Table) Resolve(domain, version, name string) (Func, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fn, ok := t.entries[Namespace(domain, version)][name]
	return fn, ok
}

// Names returns the sorted transformer names registered for a domain version
func (t *Table) Names(domain, version string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var names []string
	for name := range t.entries[Namespace(domain, version)] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
