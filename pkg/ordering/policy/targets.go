package policy

// DefaultTargetWeeks is the global fallback inventory coverage when neither
// an item override nor a category default applies.
const DefaultTargetWeeks = 4.0

// Targets configures desired inventory coverage. Targets is passed into
// evaluation at call time; there is no module-level configuration.
type Targets struct {
	// DefaultWeeks is the coverage used when no category or item override
	// matches. Zero falls back to DefaultTargetWeeks.
	DefaultWeeks float64 `yaml:"default_weeks" json:"default_weeks"`

	// ByCategory maps category name to target weeks.
	ByCategory map[string]float64 `yaml:"by_category" json:"by_category,omitempty"`

	// ItemOverrides maps item ID to target weeks, taking precedence over
	// category defaults.
	ItemOverrides map[string]float64 `yaml:"item_overrides" json:"item_overrides,omitempty"`

	// NeverOrder lists item IDs excluded from ordering entirely.
	NeverOrder []string `yaml:"never_order" json:"never_order,omitempty"`
}

// TargetWeeks resolves the coverage target for an item.
// Resolution order: item override, category default, global default.
func (t Targets) TargetWeeks(itemID, category string) float64 {
	if w, ok := t.ItemOverrides[itemID]; ok {
		return w
	}
	if w, ok := t.ByCategory[category]; ok {
		return w
	}
	if t.DefaultWeeks > 0 {
		return t.DefaultWeeks
	}
	return DefaultTargetWeeks
}

// IsNeverOrder reports whether the item is excluded from ordering.
func (t Targets) IsNeverOrder(itemID string) bool {
	for _, id := range t.NeverOrder {
		if id == itemID {
			return true
		}
	}
	return false
}

// Merge returns a copy of t with non-zero fields of override applied on
// top. Maps and the never-order list are unioned, with override entries
// winning on conflict.
func (t Targets) Merge(override Targets) Targets {
	merged := Targets{
		DefaultWeeks:  t.DefaultWeeks,
		ByCategory:    copyFloatMap(t.ByCategory),
		ItemOverrides: copyFloatMap(t.ItemOverrides),
		NeverOrder:    append([]string(nil), t.NeverOrder...),
	}
	if override.DefaultWeeks > 0 {
		merged.DefaultWeeks = override.DefaultWeeks
	}
	for k, v := range override.ByCategory {
		if merged.ByCategory == nil {
			merged.ByCategory = make(map[string]float64)
		}
		merged.ByCategory[k] = v
	}
	for k, v := range override.ItemOverrides {
		if merged.ItemOverrides == nil {
			merged.ItemOverrides = make(map[string]float64)
		}
		merged.ItemOverrides[k] = v
	}
	for _, id := range override.NeverOrder {
		if !merged.IsNeverOrder(id) {
			merged.NeverOrder = append(merged.NeverOrder, id)
		}
	}
	return merged
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
