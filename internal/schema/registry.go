// Package schema declares the analytics column registry: which columns of
// the master dataset are loaded, how they are typed, and how they are
// described to the query generator.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the semantic type of a registered column.
type Kind int

const (
	Text Kind = iota
	Numeric
	DateTime
	List
)

// String returns the lowercase name used in prompts and config files.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case DateTime:
		return "datetime"
	case List:
		return "list"
	default:
		return "text"
	}
}

// Column describes one registered dataset column.
type Column struct {
	Name        string
	Description string
	Kind        Kind
}

// Registry maps column names to their declared metadata. The authorization
// column is always part of the registry and survives pruning.
type Registry struct {
	columns map[string]Column
	order   []string
	authCol string
}

// AuthColumn is the multi-valued column holding, per row, the consignee
// codes permitted to see that row.
const AuthColumn = "consignee_codes"

// DatePriority lists date columns in the order used when sorting result
// previews latest-first. The first column present in a frame wins.
var DatePriority = []string{
	"best_eta_dp_date",
	"best_eta_fd_date",
	"ata_dp_date",
	"eta_dp_date",
	"eta_fd_date",
}

// PreviewColumns is the preferred column order for row previews.
var PreviewColumns = []string{
	"container_number",
	"po_numbers",
	"load_port",
	"discharge_port",
	"eta_dp_date",
	"best_eta_dp_date",
	"ata_dp_date",
	"final_destination",
	"eta_fd_date",
	"best_eta_fd_date",
}

// New builds a registry from the given columns. The authorization column is
// appended automatically if the caller did not declare it.
func New(cols []Column) *Registry {
	r := &Registry{columns: make(map[string]Column, len(cols)+1), authCol: AuthColumn}
	for _, c := range cols {
		if _, dup := r.columns[c.Name]; dup {
			continue
		}
		r.columns[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	if _, ok := r.columns[AuthColumn]; !ok {
		c := Column{Name: AuthColumn, Description: "consignee codes authorized to view the row", Kind: List}
		r.columns[AuthColumn] = c
		r.order = append(r.order, AuthColumn)
	}
	return r
}

// Default returns the shipment analytics registry.
func Default() *Registry {
	return New([]Column{
		{Name: "container_number", Description: "container identifier", Kind: Text},
		{Name: "po_numbers", Description: "purchase order numbers on the shipment", Kind: Text},
		{Name: "shipment_status", Description: "lifecycle status, e.g. DELIVERED, IN_OCEAN", Kind: Text},
		{Name: "load_port", Description: "port of loading", Kind: Text},
		{Name: "discharge_port", Description: "port of discharge (DP)", Kind: Text},
		{Name: "final_destination", Description: "final destination (FD)", Kind: Text},
		{Name: "final_carrier_name", Description: "ocean carrier name", Kind: Text},
		{Name: "eta_dp_date", Description: "original ETA at discharge port", Kind: DateTime},
		{Name: "best_eta_dp_date", Description: "best known ETA at discharge port", Kind: DateTime},
		{Name: "ata_dp_date", Description: "actual arrival at discharge port", Kind: DateTime},
		{Name: "eta_fd_date", Description: "original ETA at final destination", Kind: DateTime},
		{Name: "best_eta_fd_date", Description: "best known ETA at final destination", Kind: DateTime},
		{Name: "cargo_weight_kg", Description: "cargo weight in kilograms", Kind: Numeric},
		{Name: "teus", Description: "twenty-foot equivalent units", Kind: Numeric},
		{Name: "dp_delayed_dur", Description: "delay at discharge port in days", Kind: Numeric},
	})
}

// AuthColumnName returns the authorization column name.
func (r *Registry) AuthColumnName() string { return r.authCol }

// Lookup returns the column metadata and whether the column is registered.
func (r *Registry) Lookup(name string) (Column, bool) {
	c, ok := r.columns[name]
	return c, ok
}

// Has reports whether a column is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.columns[name]
	return ok
}

// Names returns registered column names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Prune filters the available column names down to the registered set,
// keeping the authorization column unconditionally. The result preserves
// declaration order.
func (r *Registry) Prune(available []string) []string {
	avail := make(map[string]bool, len(available))
	for _, name := range available {
		avail[name] = true
	}
	var kept []string
	for _, name := range r.order {
		if avail[name] {
			kept = append(kept, name)
		}
	}
	return kept
}

// Reference renders the column reference block used in generation prompts.
// Columns are listed in declaration order, restricted to those present.
func (r *Registry) Reference(present []string) string {
	set := make(map[string]bool, len(present))
	for _, name := range present {
		set[name] = true
	}
	var b strings.Builder
	for _, name := range r.order {
		if name == r.authCol || !set[name] {
			continue
		}
		c := r.columns[name]
		fmt.Fprintf(&b, "- `%s`: %s (type: %s)\n", c.Name, c.Description, c.Kind)
	}
	return b.String()
}

// Kinds returns a name→kind map sorted copy for loaders.
func (r *Registry) Kinds() map[string]Kind {
	out := make(map[string]Kind, len(r.columns))
	for name, c := range r.columns {
		out[name] = c.Kind
	}
	return out
}

// SortedNames returns registered names in lexical order, used for
// deterministic logging.
func (r *Registry) SortedNames() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}
