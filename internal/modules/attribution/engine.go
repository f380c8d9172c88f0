// Package attribution assigns fractional revenue credit to the marketing
// touchpoints of a customer journey. All functions are pure.
package attribution

import (
	"math"
	"sort"
	"time"
)

// Model names a multi-touch attribution model
type Model string

const (
	ModelLastClick  Model = "last_click"
	ModelFirstClick Model = "first_click"
	ModelLinear     Model = "linear"
	ModelTimeDecay  Model = "time_decay"
)

// Models lists every supported model
var Models = []Model{ModelLastClick, ModelFirstClick, ModelLinear, ModelTimeDecay}

// DefaultDecayHalfLife is the time-decay half-life when none is configured
const DefaultDecayHalfLife = 7 * 24 * time.Hour

// DefaultPrecision is the number of decimal digits kept by NormalizeCredits
const DefaultPrecision = 4

// MaxPrecision is the most decimal digits a float64 credit can carry
const MaxPrecision = 15

// Touchpoint is one customer interaction with a marketing channel
type Touchpoint struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// CreditMap maps a touchpoint source to its fractional credit
type CreditMap map[string]float64

// Options tunes model behaviour
type Options struct {
	DecayHalfLife time.Duration // time_decay only; <= 0 means DefaultDecayHalfLife
}

// Total returns the sum of all credits
func (c CreditMap) Total() float64 {
	total := 0.0
	for _, v := range c {
		total += v
	}
	return total
}

// Attribute distributes one journey's credit across its touchpoints.
// Touchpoints are ordered by timestamp on a copy; equal timestamps keep their
// input order. Empty input or an unknown model yields an empty map.
func Attribute(touchpoints []Touchpoint, model Model, opts Options) CreditMap {
	credits := make(CreditMap)
	if len(touchpoints) == 0 {
		return credits
	}

	sorted := make([]Touchpoint, len(touchpoints))
	copy(sorted, touchpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	switch model {
	case ModelLastClick:
		credits[sorted[len(sorted)-1].Source] = 1.0

	case ModelFirstClick:
		credits[sorted[0].Source] = 1.0

	case ModelLinear:
		share := 1.0 / float64(len(sorted))
		for _, tp := range sorted {
			credits[tp.Source] += share
		}

	case ModelTimeDecay:
		halfLife := opts.DecayHalfLife
		if halfLife <= 0 {
			halfLife = DefaultDecayHalfLife
		}
		last := sorted[len(sorted)-1].Timestamp

		weights := make([]float64, len(sorted))
		sum := 0.0
		for i, tp := range sorted {
			age := last.Sub(tp.Timestamp)
			if age < 0 {
				age = 0
			}
			weights[i] = math.Pow(0.5, float64(age)/float64(halfLife))
			sum += weights[i]
		}

		// A zero weight sum leaves every credit at 0 instead of dividing by zero
		for i, tp := range sorted {
			credit := 0.0
			if sum > 0 {
				credit = weights[i] / sum
			}
			credits[tp.Source] += credit
		}
	}

	return credits
}

// AttributeJourneys sums per-journey credit across many journeys; each
// non-empty journey contributes a total of 1.0 before normalization.
func AttributeJourneys(journeys [][]Touchpoint, model Model, opts Options) CreditMap {
	total := make(CreditMap)
	for _, journey := range journeys {
		for source, credit := range Attribute(journey, model, opts) {
			total[source] += credit
		}
	}
	return total
}

// NormalizeCredits scales credits so they sum to 1 and rounds each entry to
// precision decimal digits (negative precision means DefaultPrecision,
// anything above MaxPrecision is clamped to it).
// Rounding hands leftover units to the largest remainders, so the rounded
// values of a non-empty map sum to 1. A zero-sum map is divided by 1.
func NormalizeCredits(credits CreditMap, precision int) CreditMap {
	if precision < 0 {
		precision = DefaultPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	normalized := make(CreditMap, len(credits))
	if len(credits) == 0 {
		return normalized
	}

	total := credits.Total()
	if total == 0 {
		total = 1
	}

	scale := math.Pow(10, float64(precision))

	type share struct {
		source    string
		units     float64
		remainder float64
	}
	shares := make([]share, 0, len(credits))
	assigned := 0.0
	for source, credit := range credits {
		exact := credit / total * scale
		units := math.Floor(exact)
		shares = append(shares, share{source: source, units: units, remainder: exact - units})
		assigned += units
	}

	// Units still owed after flooring; a zero-sum map owes nothing
	target := scale
	if credits.Total() == 0 {
		target = 0
	}
	missing := int(math.Round(target - assigned))

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].remainder != shares[j].remainder {
			return shares[i].remainder > shares[j].remainder
		}
		return shares[i].source < shares[j].source
	})
	for i := 0; i < missing && i < len(shares); i++ {
		shares[i].units++
	}

	for _, s := range shares {
		normalized[s.source] = s.units / scale
	}
	return normalized
}

// ParseModel converts a model name into a Model
func ParseModel(name string) (Model, bool) {
	for _, m := range Models {
		if string(m) == name {
			return m, true
		}
	}
	return "", false
}
