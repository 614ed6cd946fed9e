package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SimilarityFunc computes a 0.0-1.0 similarity between two normalized vendor
// strings. The default is token-level Levenshtein; swap it to calibrate.
type SimilarityFunc func(a, b string) float64

// Scorer is the scoring engine. It is pure: no storage, no clock.
type Scorer struct {
	config     Config
	similarity SimilarityFunc
}

// NewScorer creates a scorer with the default token similarity.
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config, similarity: TokenSimilarity}
}

// NewScorerWithSimilarity creates a scorer with a custom similarity metric.
func NewScorerWithSimilarity(config Config, similarity SimilarityFunc) *Scorer {
	return &Scorer{config: config, similarity: similarity}
}

// Config returns the scorer's calibration.
func (s *Scorer) Config() Config { return s.config }

// Score scores one receipt/candidate pair. A receipt missing its amount or
// date produces an all-zero score with a reason, never an error: extraction
// gaps make a non-candidate, not a failure.
func (s *Scorer) Score(receipt ReceiptFields, candidate Candidate) Score {
	if receipt.Amount == nil {
		return Score{Reason: "receipt amount not extracted"}
	}
	if receipt.Date == nil {
		return Score{Reason: "receipt date not extracted"}
	}

	amountScore, amountReason := s.scoreAmount(*receipt.Amount, candidate.Amount)
	dateScore, dateReason := s.scoreDate(*receipt.Date, candidate.Date, receipt.Vendor)
	vendorScore, vendorReason := s.scoreVendor(receipt.Vendor, candidate.Name)

	confidence := math.Min(amountScore+dateScore+vendorScore, Scale)

	return Score{
		Amount:     amountScore,
		Date:       dateScore,
		Vendor:     vendorScore,
		Confidence: confidence,
		Reason:     joinReasons(amountReason, dateReason, vendorReason),
	}
}

// scoreAmount compares amounts at 2 decimal places; near misses inside the
// percentage tolerance earn partial points.
func (s *Scorer) scoreAmount(receiptAmount, candidateAmount float64) (float64, string) {
	ra := decimal.NewFromFloat(receiptAmount).Round(2)
	ca := decimal.NewFromFloat(candidateAmount).Round(2)

	if ra.Equal(ca) {
		return s.config.AmountPoints, "exact amount"
	}

	if s.config.AmountTolerancePercent > 0 {
		tolerance := ra.Abs().Mul(decimal.NewFromFloat(s.config.AmountTolerancePercent / 100.0))
		diff := ra.Sub(ca).Abs()
		if diff.LessThanOrEqual(tolerance) {
			return s.config.PartialAmountPoints,
				fmt.Sprintf("amount within %.1f%%", s.config.AmountTolerancePercent)
		}
	}

	return 0, ""
}

// scoreDate awards full points for same-day and decays linearly across the
// window. Travel-prone vendors get the wider window because card charges for
// hotels and airlines post days after the stated date.
func (s *Scorer) scoreDate(receiptDate, candidateDate time.Time, vendor string) (float64, string) {
	days := dayDistance(receiptDate, candidateDate)
	if days == 0 {
		return s.config.DatePoints, "same day"
	}

	window := s.config.DateWindowFor(vendor)
	if window == 0 || days > window {
		return 0, ""
	}

	score := s.config.DatePoints * (1.0 - float64(days)/float64(window+1))
	return score, fmt.Sprintf("%d day(s) apart", days)
}

func (s *Scorer) scoreVendor(receiptVendor, candidateName string) (float64, string) {
	a := NormalizeVendor(receiptVendor)
	b := NormalizeVendor(candidateName)
	if a == "" || b == "" {
		return 0, ""
	}

	similarity := s.similarity(a, b)
	if similarity < s.config.VendorSimilarityCutoff {
		return 0, ""
	}

	return similarity * s.config.VendorPoints,
		fmt.Sprintf("vendor %.0f%% similar", similarity*100)
}

func joinReasons(reasons ...string) string {
	kept := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != "" {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return "no factor matched"
	}
	return strings.Join(kept, "; ")
}

// dayDistance returns whole calendar days between two dates, ignoring time of
// day and timezone offsets within the dates.
func dayDistance(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Abs(ad.Sub(bd).Hours()) / 24)
	return days
}

// processorPrefixes are payment-rail artifacts that precede the real vendor
// in card descriptions, e.g. "PAYPAL *TWILIO".
var processorPrefixes = []string{"PAYPAL", "DNH*", "PY*", "DMI*", "SQ*", "TST*", "SP*"}

// NormalizeVendor uppercases, strips punctuation and drops leading payment
// processor prefixes so "PayPal *Twilio Inc." compares as "TWILIO INC".
func NormalizeVendor(name string) string {
	n := strings.ToUpper(name)
	n = strings.ReplaceAll(n, ".", "")
	n = strings.ReplaceAll(n, ",", "")
	n = strings.ReplaceAll(n, "-", " ")
	n = strings.ReplaceAll(n, "*", " ")
	n = strings.TrimSpace(n)

	fields := strings.Fields(n)
	for len(fields) > 1 {
		stripped := false
		for _, prefix := range processorPrefixes {
			if fields[0] == strings.TrimSuffix(prefix, "*") || fields[0] == prefix {
				fields = fields[1:]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(fields, " ")
}

// containsToken reports whether needle appears as a whole token of haystack.
func containsToken(haystack, needle string) bool {
	for _, token := range strings.Fields(haystack) {
		if token == needle {
			return true
		}
	}
	return false
}

// TokenSimilarity scores how well each token of a is mirrored in b, using
// Levenshtein distance per token pair and averaging the best alignments.
func TokenSimilarity(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, at := range aTokens {
		best := 0.0
		for _, bt := range bTokens {
			dist := levenshtein(at, bt)
			maxLen := math.Max(float64(len(at)), float64(len(bt)))
			if maxLen == 0 {
				continue
			}
			sim := 1 - float64(dist)/maxLen
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(aTokens))
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = minOf(dp[i-1][j]+1, dp[i][j-1]+1, dp[i-1][j-1]+cost)
		}
	}
	return dp[len(a)][len(b)]
}

func minOf(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
