package domain

// DefaultTopK is the number of matches requested when the caller gives none.
const DefaultTopK = 5

// MatchItem is one ranked SNP candidate as delivered by the scoring service.
type MatchItem struct {
	SNPID          int64           `json:"snp_id" yaml:"snp_id"`
	SNPName        string          `json:"snp_name" yaml:"snp_name"`
	CompositeScore float64         `json:"composite_score" yaml:"composite_score"`
	ConfidenceBand ConfidenceBand  `json:"confidence_band" yaml:"confidence_band"`
	Factors        FactorBreakdown `json:"factors" yaml:"factors"`
	ExplainerEN    string          `json:"explainer_en" yaml:"explainer_en"`
	ExplainerHI    string          `json:"explainer_hi" yaml:"explainer_hi"`
}

// MatchResponse is the ranked result of one orchestration. Rank is position;
// callers must not resort Matches.
type MatchResponse struct {
	MSEID           int64       `json:"mse_id" yaml:"mse_id"`
	MSEName         string      `json:"mse_name" yaml:"mse_name"`
	PredictedDomain *string     `json:"predicted_domain" yaml:"predicted_domain"`
	Matches         []MatchItem `json:"matches" yaml:"matches"`
}

// HasDomain reports whether classification produced a domain.
func (r *MatchResponse) HasDomain() bool {
	return r != nil && r.PredictedDomain != nil && *r.PredictedDomain != ""
}

// ClassifyRequest is the body of POST /classify/.
type ClassifyRequest struct {
	MSEID int64 `json:"mse_id"`
}

// DomainPrediction is one candidate domain from classification.
type DomainPrediction struct {
	Domain     string  `json:"domain" yaml:"domain"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ClassifyResult is the body returned by POST /classify/. Only the call's
// success is required by the orchestrator.
type ClassifyResult struct {
	MSEID          int64              `json:"mse_id" yaml:"mse_id"`
	Top3           []DomainPrediction `json:"top3" yaml:"top3"`
	SelectedDomain string             `json:"selected_domain" yaml:"selected_domain"`
	Confidence     float64            `json:"confidence" yaml:"confidence"`
}

// MatchRequest is the body of POST /match/.
type MatchRequest struct {
	MSEID int64 `json:"mse_id"`
	TopK  int   `json:"top_k"`
}

// RemoteHealth is the body returned by GET /health on the AgentMap API.
type RemoteHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
