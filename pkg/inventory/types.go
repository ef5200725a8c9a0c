package inventory

import (
	"sort"
	"time"
)

// Item describes one orderable product in the catalog.
// Items are created by the ingestion layer and are immutable within a run.
type Item struct {
	// ID uniquely identifies the item (e.g., "tito's-handmade-vodka").
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable display name.
	Name string `yaml:"name" json:"name"`

	// Category groups items for target resolution (e.g., "Draft Beer").
	Category string `yaml:"category" json:"category"`

	// Vendor is the supplier this item is ordered from.
	Vendor string `yaml:"vendor" json:"vendor"`

	// UnitCost is the cost of a single unit (bottle, keg, case component).
	UnitCost float64 `yaml:"unit_cost" json:"unit_cost"`

	// CaseSize is the rounding unit for orders. Zero means no case rounding.
	CaseSize int `yaml:"case_size,omitempty" json:"case_size,omitempty"`
}

// UsageRecord is one weekly inventory observation for an item.
//
// Usage may be negative. A negative value is a data-quality signal
// (miscount, untracked transfer) and is preserved, never discarded.
type UsageRecord struct {
	ItemID   string    `json:"item_id"`
	WeekDate time.Time `json:"week_date"`
	OnHand   float64   `json:"on_hand"`
	Usage    float64   `json:"usage"`
}

// Dataset is a fully-materialized inventory snapshot: the item catalog plus
// chronologically ordered usage records per item. It is read-only input to
// the ordering engine; concurrent runs over the same Dataset are safe.
type Dataset struct {
	ID      string
	items   map[string]Item
	records map[string][]UsageRecord
}

// NewDataset creates an empty dataset with the given identifier.
func NewDataset(id string) *Dataset {
	return &Dataset{
		ID:      id,
		items:   make(map[string]Item),
		records: make(map[string][]UsageRecord),
	}
}

// AddItem registers an item in the catalog, replacing any previous entry.
func (d *Dataset) AddItem(item Item) {
	d.items[item.ID] = item
}

// AddRecord appends a usage record, keeping the item's records in
// chronological order.
func (d *Dataset) AddRecord(rec UsageRecord) {
	recs := append(d.records[rec.ItemID], rec)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].WeekDate.Before(recs[j].WeekDate)
	})
	d.records[rec.ItemID] = recs
}

// Item returns the catalog entry for id, if present.
func (d *Dataset) Item(id string) (Item, bool) {
	item, ok := d.items[id]
	return item, ok
}

// Records returns the chronologically ordered usage records for id.
// The returned slice must not be modified.
func (d *Dataset) Records(id string) []UsageRecord {
	return d.records[id]
}

// ItemIDs returns all catalog item IDs in lexical order. Items that only
// appear in records (no catalog entry) are included so that malformed data
// degrades to a conservative recommendation instead of vanishing.
func (d *Dataset) ItemIDs() []string {
	seen := make(map[string]struct{}, len(d.items))
	ids := make([]string, 0, len(d.items))
	for id := range d.items {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range d.records {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of distinct items in the dataset.
func (d *Dataset) Len() int {
	return len(d.ItemIDs())
}

// DateRange returns the earliest and latest record dates across all items.
// Both are zero when the dataset has no records.
func (d *Dataset) DateRange() (start, end time.Time) {
	for _, recs := range d.records {
		for _, r := range recs {
			if start.IsZero() || r.WeekDate.Before(start) {
				start = r.WeekDate
			}
			if end.IsZero() || r.WeekDate.After(end) {
				end = r.WeekDate
			}
		}
	}
	return start, end
}
