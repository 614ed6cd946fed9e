// Package matching implements the receipt-to-transaction scoring engine.
//
// Scoring is a pure function over a receipt's extracted fields and one
// candidate (an individual transaction or a transaction group). Three
// sub-scores are produced on a 0-100 scale:
//   - amount: exact equality earns the full amount points, a small percentage
//     tolerance earns partial points
//   - date: same-day earns full date points, decaying linearly inside a
//     configurable window (wider for travel-prone vendors)
//   - vendor: token-level string similarity scaled to the vendor points, with
//     a cutoff below which unrelated names score zero
//
// All point values and tolerances are calibration parameters, not contracts;
// adjust them through Config rather than editing the scorer.
package matching

import "fmt"

// Config holds the scoring and selection calibration parameters.
type Config struct {
	// AmountPoints is awarded for an exact amount match (2 decimal places).
	AmountPoints float64 `yaml:"amount_points" json:"amount_points"`

	// PartialAmountPoints is awarded when the amounts differ but stay within
	// AmountTolerancePercent of the receipt amount.
	PartialAmountPoints float64 `yaml:"partial_amount_points" json:"partial_amount_points"`

	// AmountTolerancePercent is the near-match tolerance (0-100).
	AmountTolerancePercent float64 `yaml:"amount_tolerance_percent" json:"amount_tolerance_percent"`

	// DatePoints is awarded for a same-day match, decaying to zero at the
	// edge of the window.
	DatePoints float64 `yaml:"date_points" json:"date_points"`

	// DateWindowDays is the day window for non-travel vendors.
	DateWindowDays int `yaml:"date_window_days" json:"date_window_days"`

	// TravelDateWindowDays is the wider window used when the receipt vendor
	// looks travel-related (charges often post days after the trip).
	TravelDateWindowDays int `yaml:"travel_date_window_days" json:"travel_date_window_days"`

	// TravelVendorKeywords marks a vendor as travel-prone when its normalized
	// name contains any of these tokens.
	TravelVendorKeywords []string `yaml:"travel_vendor_keywords" json:"travel_vendor_keywords"`

	// VendorPoints is the maximum vendor similarity contribution.
	VendorPoints float64 `yaml:"vendor_points" json:"vendor_points"`

	// VendorSimilarityCutoff zeroes the vendor score below this similarity
	// (0.0-1.0) so unrelated names contribute nothing.
	VendorSimilarityCutoff float64 `yaml:"vendor_similarity_cutoff" json:"vendor_similarity_cutoff"`

	// MinProposalScore is the minimum confidence for writing a proposal.
	MinProposalScore float64 `yaml:"min_proposal_score" json:"min_proposal_score"`

	// AmbiguityDelta flags a run as ambiguous when the runner-up is within
	// this many points of the winner.
	AmbiguityDelta float64 `yaml:"ambiguity_delta" json:"ambiguity_delta"`

	// MinAmountWindow widens the candidate amount window to at least this
	// absolute value so tiny receipts still see near-miss candidates.
	MinAmountWindow float64 `yaml:"min_amount_window" json:"min_amount_window"`
}

// Scale is the cap for the combined confidence score.
const Scale = 100.0

// DefaultConfig returns the calibration used in production.
func DefaultConfig() Config {
	return Config{
		AmountPoints:           50,
		PartialAmountPoints:    25,
		AmountTolerancePercent: 5.0,
		DatePoints:             30,
		DateWindowDays:         7,
		TravelDateWindowDays:   14,
		TravelVendorKeywords: []string{
			"AIRLINES", "AIRWAYS", "AIR", "DELTA", "UNITED", "SOUTHWEST",
			"HOTEL", "HILTON", "MARRIOTT", "HAMPTON", "DOUBLETREE",
			"HERTZ", "ENTERPRISE", "RENTAL",
		},
		VendorPoints:           20,
		VendorSimilarityCutoff: 0.55,
		MinProposalScore:       50,
		AmbiguityDelta:         5,
		MinAmountWindow:        1.00,
	}
}

// StrictConfig tightens tolerances for reconciliation that must not guess.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.AmountTolerancePercent = 0
	cfg.PartialAmountPoints = 0
	cfg.DateWindowDays = 3
	cfg.TravelDateWindowDays = 7
	cfg.VendorSimilarityCutoff = 0.75
	cfg.MinProposalScore = 70
	return cfg
}

// RelaxedConfig loosens tolerances for exploratory matching.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.AmountTolerancePercent = 10.0
	cfg.DateWindowDays = 14
	cfg.TravelDateWindowDays = 30
	cfg.VendorSimilarityCutoff = 0.40
	cfg.MinProposalScore = 40
	return cfg
}

// Validate checks the calibration for values the scorer cannot work with.
func (c Config) Validate() error {
	if c.AmountPoints <= 0 {
		return fmt.Errorf("amount points must be positive: %v", c.AmountPoints)
	}
	if c.PartialAmountPoints < 0 || c.PartialAmountPoints > c.AmountPoints {
		return fmt.Errorf("partial amount points must be in [0, %v]: %v", c.AmountPoints, c.PartialAmountPoints)
	}
	if c.AmountTolerancePercent < 0 || c.AmountTolerancePercent > 100 {
		return fmt.Errorf("amount tolerance percent must be in [0, 100]: %v", c.AmountTolerancePercent)
	}
	if c.DatePoints < 0 {
		return fmt.Errorf("date points cannot be negative: %v", c.DatePoints)
	}
	if c.DateWindowDays < 0 || c.TravelDateWindowDays < c.DateWindowDays {
		return fmt.Errorf("date windows invalid: window=%d travel=%d", c.DateWindowDays, c.TravelDateWindowDays)
	}
	if c.VendorPoints < 0 {
		return fmt.Errorf("vendor points cannot be negative: %v", c.VendorPoints)
	}
	if c.VendorSimilarityCutoff < 0 || c.VendorSimilarityCutoff > 1 {
		return fmt.Errorf("vendor similarity cutoff must be in [0, 1]: %v", c.VendorSimilarityCutoff)
	}
	if c.AmountPoints+c.DatePoints+c.VendorPoints > Scale {
		return fmt.Errorf("point maxima exceed scale %v: %v",
			Scale, c.AmountPoints+c.DatePoints+c.VendorPoints)
	}
	if c.MinProposalScore < 0 || c.MinProposalScore > Scale {
		return fmt.Errorf("min proposal score must be in [0, %v]: %v", Scale, c.MinProposalScore)
	}
	if c.AmbiguityDelta < 0 {
		return fmt.Errorf("ambiguity delta cannot be negative: %v", c.AmbiguityDelta)
	}
	return nil
}

// DateWindowFor returns the candidate date window in days for a vendor,
// using the travel window when the vendor looks travel-related.
func (c Config) DateWindowFor(vendor string) int {
	if c.isTravelVendor(vendor) {
		return c.TravelDateWindowDays
	}
	return c.DateWindowDays
}

// MaxDateWindow returns the widest window; candidate queries use it so the
// scorer can still apply the narrower per-vendor window afterwards.
func (c Config) MaxDateWindow() int {
	return c.TravelDateWindowDays
}

func (c Config) isTravelVendor(vendor string) bool {
	normalized := NormalizeVendor(vendor)
	for _, keyword := range c.TravelVendorKeywords {
		if containsToken(normalized, keyword) {
			return true
		}
	}
	return false
}
