package agentmap

import (
	"github.com/agentmap/dashboard/internal/domain"
)

// matchResponseWire mirrors the /match/ body. Factors is a pointer so a
// missing or null factor object is detected instead of reading as zeros.
type matchResponseWire struct {
	MSEID           int64           `json:"mse_id"`
	MSEName         string          `json:"mse_name"`
	PredictedDomain *string         `json:"predicted_domain"`
	Matches         []matchItemWire `json:"matches"`
}

type matchItemWire struct {
	SNPID          int64                   `json:"snp_id"`
	SNPName        string                  `json:"snp_name"`
	CompositeScore float64                 `json:"composite_score"`
	ConfidenceBand domain.ConfidenceBand   `json:"confidence_band"`
	Factors        *domain.FactorBreakdown `json:"factors"`
	ExplainerEN    string                  `json:"explainer_en"`
	ExplainerHI    string                  `json:"explainer_hi"`
}

// MapMatchResponse converts the wire body into the domain response,
// preserving upstream order.
func MapMatchResponse(w *matchResponseWire) (*domain.MatchResponse, error) {
	out := &domain.MatchResponse{
		MSEID:           w.MSEID,
		MSEName:         w.MSEName,
		PredictedDomain: w.PredictedDomain,
		Matches:         make([]domain.MatchItem, 0, len(w.Matches)),
	}

	seen := make(map[int64]bool, len(w.Matches))
	for i, m := range w.Matches {
		if m.Factors == nil {
			return nil, domain.Errorf(domain.KindInvalidInput, "match %d (snp %d) has no factor breakdown", i+1, m.SNPID)
		}
		if seen[m.SNPID] {
			return nil, domain.Errorf(domain.KindInvalidInput, "snp %d appears more than once in match list", m.SNPID)
		}
		seen[m.SNPID] = true

		out.Matches = append(out.Matches, domain.MatchItem{
			SNPID:          m.SNPID,
			SNPName:        m.SNPName,
			CompositeScore: m.CompositeScore,
			ConfidenceBand: m.ConfidenceBand,
			Factors:        *m.Factors,
			ExplainerEN:    m.ExplainerEN,
			ExplainerHI:    m.ExplainerHI,
		})
	}

	return out, nil
}
