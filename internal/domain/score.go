package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Factor identifies one component of the match score vector.
type Factor string

const (
	FactorDomain     Factor = "domain"
	FactorGeo        Factor = "geo"
	FactorCommission Factor = "commission"
	FactorHistory    Factor = "history"
	FactorSentiment  Factor = "sentiment"
)

// Factors lists every factor in display order.
var Factors = []Factor{FactorDomain, FactorGeo, FactorCommission, FactorHistory, FactorSentiment}

// Label returns the English display label used on factor bars.
func (f Factor) Label() string {
	switch f {
	case FactorDomain:
		return "Domain Fit"
	case FactorGeo:
		return "Geo Match"
	case FactorCommission:
		return "Commission"
	case FactorHistory:
		return "History"
	case FactorSentiment:
		return "Sentiment"
	}
	return string(f)
}

// wireKey is the JSON field name used by the scoring service.
func (f Factor) wireKey() string {
	return string(f) + "_score"
}

// Weights holds one weight per factor.
type Weights struct {
	Domain     float64
	Geo        float64
	Commission float64
	History    float64
	Sentiment  float64
}

// ScoreWeights is the fixed weighting the scoring service applies.
// M = 0.35*D + 0.20*G + 0.15*C + 0.20*H + 0.10*S
var ScoreWeights = Weights{
	Domain:     0.35,
	Geo:        0.20,
	Commission: 0.15,
	History:    0.20,
	Sentiment:  0.10,
}

// Of returns the weight for a single factor.
func (w Weights) Of(f Factor) float64 {
	switch f {
	case FactorDomain:
		return w.Domain
	case FactorGeo:
		return w.Geo
	case FactorCommission:
		return w.Commission
	case FactorHistory:
		return w.History
	case FactorSentiment:
		return w.Sentiment
	}
	return 0
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Domain + w.Geo + w.Commission + w.History + w.Sentiment
}

// FactorBreakdown is the normalized score vector for one SNP candidate.
type FactorBreakdown struct {
	Domain     float64 `json:"domain_score" yaml:"domain_score"`
	Geo        float64 `json:"geo_score" yaml:"geo_score"`
	Commission float64 `json:"commission_score" yaml:"commission_score"`
	History    float64 `json:"history_score" yaml:"history_score"`
	Sentiment  float64 `json:"sentiment_score" yaml:"sentiment_score"`
}

// Value returns the raw value of a single factor.
func (f FactorBreakdown) Value(factor Factor) float64 {
	switch factor {
	case FactorDomain:
		return f.Domain
	case FactorGeo:
		return f.Geo
	case FactorCommission:
		return f.Commission
	case FactorHistory:
		return f.History
	case FactorSentiment:
		return f.Sentiment
	}
	return 0
}

// UnmarshalJSON rejects payloads that omit any of the five factors.
func (f *FactorBreakdown) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewError(KindInvalidInput, "malformed factor breakdown", err)
	}
	parsed, err := ParseFactors(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFactors builds a FactorBreakdown from wire keys, failing with
// ErrInvalidInput when a key is absent or null.
func ParseFactors(raw map[string]*float64) (FactorBreakdown, error) {
	var (
		out     FactorBreakdown
		missing []string
	)
	for _, factor := range Factors {
		v, ok := raw[factor.wireKey()]
		if !ok || v == nil {
			missing = append(missing, factor.wireKey())
			continue
		}
		switch factor {
		case FactorDomain:
			out.Domain = *v
		case FactorGeo:
			out.Geo = *v
		case FactorCommission:
			out.Commission = *v
		case FactorHistory:
			out.History = *v
		case FactorSentiment:
			out.Sentiment = *v
		}
	}
	if len(missing) > 0 {
		return FactorBreakdown{}, Errorf(KindInvalidInput, "missing factor(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// clamp01 bounds v to [0,1]. NaN maps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CompositeScore is the weighted sum of the factors against ScoreWeights.
// Out-of-range factor values are clamped rather than rejected.
func CompositeScore(f FactorBreakdown) float64 {
	var total float64
	for _, factor := range Factors {
		total += ScoreWeights.Of(factor) * clamp01(f.Value(factor))
	}
	return clamp01(total)
}

// FactorContribution is one bar of the factor breakdown display.
type FactorContribution struct {
	Factor       Factor  `json:"factor" yaml:"factor"`
	Label        string  `json:"label" yaml:"label"`
	Weight       float64 `json:"weight" yaml:"weight"`
	Value        float64 `json:"value" yaml:"value"`
	Contribution float64 `json:"contribution" yaml:"contribution"`
}

// Contributions breaks the composite down per factor, in display order.
func Contributions(f FactorBreakdown) []FactorContribution {
	out := make([]FactorContribution, 0, len(Factors))
	for _, factor := range Factors {
		v := clamp01(f.Value(factor))
		w := ScoreWeights.Of(factor)
		out = append(out, FactorContribution{
			Factor:       factor,
			Label:        factor.Label(),
			Weight:       w,
			Value:        v,
			Contribution: w * v,
		})
	}
	return out
}

// ConfidenceBand is the discrete triage tier derived from a composite score.
type ConfidenceBand string

const (
	BandGreen  ConfidenceBand = "green"
	BandYellow ConfidenceBand = "yellow"
	BandRed    ConfidenceBand = "red"
)

// Valid reports whether b is one of the three known bands.
func (b ConfidenceBand) Valid() bool {
	return b == BandGreen || b == BandYellow || b == BandRed
}

// BandThresholds are the lower bounds of the yellow and green bands.
// red = [0, Yellow), yellow = [Yellow, Green), green = [Green, 1].
type BandThresholds struct {
	Green  float64 `json:"green" mapstructure:"green"`
	Yellow float64 `json:"yellow" mapstructure:"yellow"`
}

// DefaultBandThresholds are the cut points used by the scoring service.
var DefaultBandThresholds = BandThresholds{Green: 0.85, Yellow: 0.60}

// Validate checks the thresholds describe three non-empty contiguous bands.
func (t BandThresholds) Validate() error {
	if !(t.Yellow > 0 && t.Yellow < t.Green && t.Green <= 1) {
		return fmt.Errorf("band thresholds must satisfy 0 < yellow < green <= 1, got yellow=%.4f green=%.4f", t.Yellow, t.Green)
	}
	return nil
}

// Classify maps a composite score to its band. Boundary values belong to the
// higher band.
func (t BandThresholds) Classify(score float64) ConfidenceBand {
	s := clamp01(score)
	switch {
	case s >= t.Green:
		return BandGreen
	case s >= t.Yellow:
		return BandYellow
	default:
		return BandRed
	}
}
