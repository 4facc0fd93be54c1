package similarity

import (
	"math"

	"github.com/exportwise/advisor-cli/internal/model"
)

// Result is the outcome of a similarity comparison.
type Result struct {
	Score     float64            `json:"score"`
	IsMatch   bool               `json:"is_match"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Engine computes weighted similarity between profiles and patterns. It is
// stateless apart from its immutable configuration and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine constructs an Engine from cfg. Zero-value fields fall back to
// DefaultConfig values, so partial overrides are safe.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.NearMatchThreshold == 0 {
		cfg.NearMatchThreshold = def.NearMatchThreshold
	}
	if cfg.NearMatchCredit == 0 {
		cfg.NearMatchCredit = def.NearMatchCredit
	}
	if cfg.DefaultRangeWidth == 0 {
		cfg.DefaultRangeWidth = def.DefaultRangeWidth
	}
	return &Engine{cfg: cfg}
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// dimension is one weighted comparison feeding the aggregate. present is
// false when the dimension is absent from both inputs and must be skipped
// rather than zero-filled.
type dimension struct {
	name    string
	weight  float64
	score   float64
	present bool
}

// aggregate normalizes the weighted sum by the total weight actually used.
func aggregate(dims []dimension) (float64, map[string]float64) {
	breakdown := make(map[string]float64, len(dims))
	var sum, weightUsed float64
	for _, d := range dims {
		if !d.present || d.weight <= 0 {
			continue
		}
		breakdown[d.name] = d.score
		sum += d.score * d.weight
		weightUsed += d.weight
	}
	if weightUsed == 0 {
		return 0, breakdown
	}
	return math.Min(math.Max(sum/weightUsed, 0), 1), breakdown
}

// ScoreProfiles compares two business profiles across products, markets,
// certifications, size and industry.
func (e *Engine) ScoreProfiles(a, b *model.BusinessProfile) Result {
	w := e.cfg.Weights
	dims := []dimension{
		{
			name:    "products",
			weight:  w.Products,
			score:   e.setScore(a.ProductNames(), b.ProductNames()),
			present: len(a.Products) > 0 || len(b.Products) > 0,
		},
		{
			name:    "markets",
			weight:  w.Markets,
			score:   e.setScore(a.TargetMarkets, b.TargetMarkets),
			present: len(a.TargetMarkets) > 0 || len(b.TargetMarkets) > 0,
		},
		{
			name:    "certifications",
			weight:  w.Certifications,
			score:   e.setScore(a.CertificationNames(), b.CertificationNames()),
			present: len(a.Certifications) > 0 || len(b.Certifications) > 0,
		},
		{
			name:    "size",
			weight:  w.Size,
			score:   NumericSimilarity(float64(a.EmployeeCount), float64(b.EmployeeCount)),
			present: a.EmployeeCount > 0 || b.EmployeeCount > 0,
		},
		{
			name:    "industry",
			weight:  w.Industry,
			score:   StringSimilarity(a.Industry, b.Industry),
			present: a.Industry != "" || b.Industry != "",
		},
	}

	score, breakdown := aggregate(dims)
	return Result{
		Score:     score,
		IsMatch:   score >= e.cfg.Thresholds.BusinessProfile,
		Breakdown: breakdown,
	}
}

// ScorePatternForProfile compares a profile against a pattern's applicability
// fields. The match threshold depends on the pattern kind: regulatory
// patterns use a lower bar because regulatory relevance is broader.
func (e *Engine) ScorePatternForProfile(profile *model.BusinessProfile, pattern model.Pattern) Result {
	core := pattern.Core()
	w := e.cfg.Weights

	dims := []dimension{
		{
			name:    "products",
			weight:  w.Products,
			score:   e.setScore(profile.ProductCategories(), core.ProductCategories),
			present: len(profile.Products) > 0 || len(core.ProductCategories) > 0,
		},
		{
			name:    "markets",
			weight:  w.Markets,
			score:   e.setScore(profile.TargetMarkets, core.Markets),
			present: len(profile.TargetMarkets) > 0 || len(core.Markets) > 0,
		},
		{
			name:    "certifications",
			weight:  w.Certifications,
			score:   e.setScore(profile.CertificationNames(), core.Certifications),
			present: len(profile.Certifications) > 0 || len(core.Certifications) > 0,
		},
		{
			name:    "size",
			weight:  w.Size,
			score:   e.rangeScore(profile.EmployeeCount, core.BusinessSize),
			present: profile.EmployeeCount > 0 && (core.BusinessSize.Min > 0 || core.BusinessSize.Max > 0),
		},
	}

	threshold := e.cfg.Thresholds.ExportPattern
	if pattern.Kind() == model.PatternKindRegulatory {
		threshold = e.cfg.Thresholds.RegulatoryPattern
	}

	score, breakdown := aggregate(dims)
	return Result{
		Score:     score,
		IsMatch:   score >= threshold,
		Breakdown: breakdown,
	}
}

// setScore applies the configured near-match parameters.
func (e *Engine) setScore(a, b []string) float64 {
	return SetSimilarity(a, b, e.cfg.NearMatchThreshold, e.cfg.NearMatchCredit)
}

// rangeScore returns 1 inside the range and a saturating decay outside it:
// 1 / (1 + 3·distance/width).
func (e *Engine) rangeScore(n int, r model.SizeRange) float64 {
	if r.Contains(n) {
		return 1
	}

	width := e.cfg.DefaultRangeWidth
	if r.Max > r.Min && r.Max > 0 {
		width = float64(r.Max - r.Min)
	}
	if width <= 0 {
		width = e.cfg.DefaultRangeWidth
	}

	var distance float64
	if n < r.Min {
		distance = float64(r.Min - n)
	} else {
		distance = float64(n - r.Max)
	}
	return 1 / (1 + 3*distance/width)
}
