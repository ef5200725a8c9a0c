package feature

import (
	"math"
	"time"

	"tapline-hq/cellar/pkg/inventory"
)

// WeeksOnHandSentinel is reported when average usage is zero or negative:
// at the current rate the item cannot stock out.
const WeeksOnHandSentinel = 999.0

// Trend is the direction of recent usage relative to the preceding window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Features holds the usage statistics computed for one item from its
// chronologically ordered weekly records. Features are recomputed fresh on
// every run and never persisted as authoritative state.
type Features struct {
	ItemID string `json:"item_id"`

	// Rolling averages. Windows shorter than the available history fall
	// back to the all-history average.
	AvgAll  float64 `json:"avg_all"`
	Avg10Wk float64 `json:"avg_10wk"`
	Avg4Wk  float64 `json:"avg_4wk"`
	Avg2Wk  float64 `json:"avg_2wk"`

	// OnHand is the most recent observed inventory level.
	OnHand float64 `json:"on_hand"`

	// WeeksOnHand is OnHand / Avg4Wk, or WeeksOnHandSentinel when Avg4Wk
	// is not positive.
	WeeksOnHand float64 `json:"weeks_on_hand"`

	TrendDirection Trend   `json:"trend_direction"`
	TrendStrength  float64 `json:"trend_strength"`

	// CoefficientOfVariation is stddev(usage)/mean(usage), 0 when the mean
	// is not positive.
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`

	// SmoothedUsage is a simple exponentially smoothed usage level.
	// Informational only; no ordering rule reads it.
	SmoothedUsage float64 `json:"smoothed_usage"`

	// LastWeekUsage is the most recent week's usage.
	LastWeekUsage float64 `json:"last_week_usage"`

	// Data-quality flags. Independent booleans, not mutually exclusive.
	HasNegativeUsage bool `json:"has_negative_usage"`
	HasGaps          bool `json:"has_gaps"`
	HasUsageSpike    bool `json:"has_usage_spike"`
	ZeroUsage        bool `json:"zero_usage"`
	InsufficientData bool `json:"insufficient_data"`

	WeeksOfData int `json:"weeks_of_data"`
}

// Config controls feature computation. The zero value is not usable;
// call DefaultConfig and override fields as needed.
type Config struct {
	// TrendWindow is the number of recent periods compared against the
	// preceding periods for trend detection. Valid range 2-4.
	TrendWindow int `yaml:"trend_window"`

	// TrendThreshold is the relative change above which usage is
	// classified as trending (default 0.15, i.e. 15%).
	TrendThreshold float64 `yaml:"trend_threshold"`

	// ExpectedPeriod is the expected interval between records. A gap
	// larger than twice this flags HasGaps.
	ExpectedPeriod time.Duration `yaml:"expected_period"`

	// SmoothingAlpha is the exponential smoothing parameter for
	// SmoothedUsage (0 < alpha <= 1).
	SmoothingAlpha float64 `yaml:"smoothing_alpha"`

	// SpikeFactor flags HasUsageSpike when the most recent week's usage
	// exceeds SpikeFactor times the all-history mean.
	SpikeFactor float64 `yaml:"spike_factor"`
}

// DefaultConfig returns the standard feature configuration.
func DefaultConfig() Config {
	return Config{
		TrendWindow:    2,
		TrendThreshold: 0.15,
		ExpectedPeriod: 7 * 24 * time.Hour,
		SmoothingAlpha: 0.3,
		SpikeFactor:    5.0,
	}
}

// normalize clamps out-of-range config values to usable defaults so that a
// partially filled Config degrades instead of failing.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.TrendWindow < 2 || c.TrendWindow > 4 {
		c.TrendWindow = def.TrendWindow
	}
	if c.TrendThreshold <= 0 {
		c.TrendThreshold = def.TrendThreshold
	}
	if c.ExpectedPeriod <= 0 {
		c.ExpectedPeriod = def.ExpectedPeriod
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		c.SmoothingAlpha = def.SmoothingAlpha
	}
	if c.SpikeFactor <= 0 {
		c.SpikeFactor = def.SpikeFactor
	}
	return c
}

// Compute derives Features from an item's chronologically ordered records.
//
// Compute is a pure function: deterministic, no side effects, no shared
// state between items. Empty input yields all-zero Features with
// WeeksOfData == 0; it never fails.
func Compute(itemID string, records []inventory.UsageRecord, cfg Config) Features {
	f := Features{ItemID: itemID, TrendDirection: TrendStable}
	if len(records) == 0 {
		return f
	}
	cfg = cfg.normalize()

	usage := make([]float64, len(records))
	for i, r := range records {
		usage[i] = r.Usage
	}
	n := len(usage)

	f.WeeksOfData = n
	f.OnHand = records[n-1].OnHand
	f.LastWeekUsage = usage[n-1]

	f.AvgAll = mean(usage)
	f.Avg10Wk = windowMean(usage, 10, f.AvgAll)
	f.Avg4Wk = windowMean(usage, 4, f.AvgAll)
	f.Avg2Wk = windowMean(usage, 2, f.AvgAll)

	if f.Avg4Wk > 0 {
		f.WeeksOnHand = f.OnHand / f.Avg4Wk
	} else {
		f.WeeksOnHand = WeeksOnHandSentinel
	}

	f.TrendDirection, f.TrendStrength = computeTrend(usage, cfg)

	if f.AvgAll > 0 {
		f.CoefficientOfVariation = stddev(usage) / f.AvgAll
	}

	f.SmoothedUsage = smooth(usage, cfg.SmoothingAlpha)

	f.HasNegativeUsage = hasNegative(usage)
	f.HasGaps = hasGaps(records, cfg.ExpectedPeriod)
	f.InsufficientData = n < 4
	f.HasUsageSpike = f.AvgAll > 0 && usage[n-1]/f.AvgAll > cfg.SpikeFactor
	f.ZeroUsage = n >= 4 && windowSum(usage, 4) == 0

	return f
}

// ComputeAll computes Features for every item in the dataset, keyed by
// item ID. Items with catalog entries but no records get empty Features so
// that downstream policy evaluation sees every item.
func ComputeAll(dataset *inventory.Dataset, cfg Config) map[string]Features {
	out := make(map[string]Features, dataset.Len())
	for _, id := range dataset.ItemIDs() {
		out[id] = Compute(id, dataset.Records(id), cfg)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// windowMean averages the last w values, falling back to the all-history
// average when fewer than w values exist.
func windowMean(xs []float64, w int, fallback float64) float64 {
	if len(xs) < w {
		return fallback
	}
	return mean(xs[len(xs)-w:])
}

func windowSum(xs []float64, w int) float64 {
	if len(xs) < w {
		w = len(xs)
	}
	var sum float64
	for _, x := range xs[len(xs)-w:] {
		sum += x
	}
	return sum
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// computeTrend compares the mean of the most recent window against the mean
// of the preceding window of equal size.
func computeTrend(usage []float64, cfg Config) (Trend, float64) {
	w := cfg.TrendWindow
	if len(usage) < 2*w {
		return TrendStable, 0
	}
	recent := mean(usage[len(usage)-w:])
	prior := mean(usage[len(usage)-2*w : len(usage)-w])
	if prior == 0 {
		return TrendStable, 0
	}

	change := (recent - prior) / prior
	strength := math.Min(math.Abs(change), 1.0)
	switch {
	case change > cfg.TrendThreshold:
		return TrendUp, strength
	case change < -cfg.TrendThreshold:
		return TrendDown, strength
	default:
		return TrendStable, strength
	}
}

func smooth(usage []float64, alpha float64) float64 {
	s := usage[0]
	for _, u := range usage[1:] {
		s = alpha*u + (1-alpha)*s
	}
	return s
}

func hasNegative(xs []float64) bool {
	for _, x := range xs {
		if x < 0 {
			return true
		}
	}
	return false
}

func hasGaps(records []inventory.UsageRecord, period time.Duration) bool {
	for i := 1; i < len(records); i++ {
		if records[i].WeekDate.Sub(records[i-1].WeekDate) > 2*period {
			return true
		}
	}
	return false
}
