package domain

import (
	"fmt"
	"sort"
)

// CategoryInfo is the display metadata for one category.
type CategoryInfo struct {
	Label    string   `mapstructure:"label" json:"label"`
	Color    string   `mapstructure:"color" json:"color"`
	Severity Severity `mapstructure:"severity" json:"severity"`
}

// CategoryTable maps category ids to their display metadata.
type CategoryTable map[Category]CategoryInfo

// DefaultCategories returns the built-in category table.
func DefaultCategories() CategoryTable {
	return CategoryTable{
		"assalto":       {Label: "Assalto", Color: "#ef4444", Severity: SeverityHigh},
		"briga":         {Label: "Briga", Color: "#f97316", Severity: SeverityMedium},
		"blitz":         {Label: "Blitz", Color: "#0ea5e9", Severity: SeverityLow},
		"policia":       {Label: "Polícia", Color: "#22c55e", Severity: SeverityLow},
		"confronto":     {Label: "Confronto", Color: "#dc2626", Severity: SeverityHigh},
		"foragidos":     {Label: "Foragidos", Color: "#eab308", Severity: SeverityMedium},
		"desaparecidos": {Label: "Desaparecidos", Color: "#64748b", Severity: SeverityLow},
		"tiros":         {Label: "Tiros", Color: "#7c3aed", Severity: SeverityHigh},
	}
}

// Lookup returns the metadata for c.
func (t CategoryTable) Lookup(c Category) (CategoryInfo, bool) {
	info, ok := t[c]
	return info, ok
}

// IDs returns the category ids in sorted order.
func (t CategoryTable) IDs() []Category {
	ids := make([]Category, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks that every entry has a label and a known default severity.
func (t CategoryTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("category table is empty")
	}
	for id, info := range t {
		if id == "" {
			return fmt.Errorf("category id must not be empty")
		}
		if info.Label == "" {
			return fmt.Errorf("category %q: label is required", id)
		}
		if _, ok := ParseSeverity(string(info.Severity)); !ok {
			return fmt.Errorf("category %q: invalid severity %q", id, info.Severity)
		}
	}
	return nil
}

// CategoryFilter is the user's category selection. Incidents without a
// recognized category are always visible.
type CategoryFilter struct {
	selected map[Category]bool
}

// NewCategoryFilter selects the given categories.
func NewCategoryFilter(categories []Category) CategoryFilter {
	f := CategoryFilter{selected: make(map[Category]bool, len(categories))}
	for _, c := range categories {
		f.selected[Category(lower(string(c)))] = true
	}
	return f
}

// Allows reports whether inc passes the filter.
func (f CategoryFilter) Allows(inc Incident) bool {
	if inc.Category == "" {
		return true
	}
	return f.selected[inc.Category]
}

// Selected returns the selected categories in sorted order.
func (f CategoryFilter) Selected() []Category {
	out := make([]Category, 0, len(f.selected))
	for c := range f.selected {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply returns the incidents that pass the filter, preserving order.
func (f CategoryFilter) Apply(incidents []Incident) []Incident {
	out := make([]Incident, 0, len(incidents))
	for _, inc := range incidents {
		if f.Allows(inc) {
			out = append(out, inc)
		}
	}
	return out
}
