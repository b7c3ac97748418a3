package usecase

import (
	"fmt"

	"github.com/agentmap/dashboard/internal/domain"
	"golang.org/x/text/language"
)

// Language is a display language for explainers and labels.
type Language string

const (
	LangEnglish Language = "en"
	LangHindi   Language = "hi"
)

// supportedLanguages is ordered by preference; the first entry is the fallback.
var (
	supportedLanguages = []Language{LangEnglish, LangHindi}
	languageMatcher    = language.NewMatcher([]language.Tag{language.English, language.Hindi})
)

// SelectLanguage maps a language selector or an Accept-Language value onto a
// supported language. Anything unrecognized selects English.
func SelectLanguage(raw string) Language {
	if raw == "" {
		return LangEnglish
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return LangEnglish
	}
	_, idx, confidence := languageMatcher.Match(tags...)
	if confidence < language.High {
		return LangEnglish
	}
	return supportedLanguages[idx]
}

var bandLabels = map[Language]map[domain.ConfidenceBand]string{
	LangEnglish: {
		domain.BandGreen:  "High Confidence",
		domain.BandYellow: "Medium Confidence",
		domain.BandRed:    "Low Confidence",
	},
	LangHindi: {
		domain.BandGreen:  "उच्च विश्वास",
		domain.BandYellow: "मध्यम विश्वास",
		domain.BandRed:    "निम्न विश्वास",
	},
}

// BandLabel returns the badge label for a band.
func BandLabel(band domain.ConfidenceBand, lang Language) string {
	labels, ok := bandLabels[lang]
	if !ok {
		labels = bandLabels[LangEnglish]
	}
	if l, ok := labels[band]; ok {
		return l
	}
	return labels[domain.BandRed]
}

// FormatComposite renders a composite score as a percentage with one decimal.
func FormatComposite(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// FormatFactor renders a factor value as a whole percentage.
func FormatFactor(value float64) string {
	return fmt.Sprintf("%.0f%%", value*100)
}

// Explainer picks the explainer text for lang.
func Explainer(item domain.MatchItem, lang Language) string {
	if lang == LangHindi {
		return item.ExplainerHI
	}
	return item.ExplainerEN
}

// BadgeView is a confidence badge.
type BadgeView struct {
	Band    domain.ConfidenceBand `json:"band" yaml:"band"`
	Label   string                `json:"label" yaml:"label"`
	Score   float64               `json:"score" yaml:"score"`
	Percent string                `json:"percent" yaml:"percent"`
}

// FactorBarView is one row of the factor breakdown.
type FactorBarView struct {
	Factor  domain.Factor `json:"factor" yaml:"factor"`
	Label   string        `json:"label" yaml:"label"`
	Weight  string        `json:"weight" yaml:"weight"`
	Value   float64       `json:"value" yaml:"value"`
	Percent string        `json:"percent" yaml:"percent"`
}

// CardView is a single ranked SNP card.
type CardView struct {
	Rank      int             `json:"rank" yaml:"rank"`
	SNPID     int64           `json:"snp_id" yaml:"snp_id"`
	SNPName   string          `json:"snp_name" yaml:"snp_name"`
	Badge     BadgeView       `json:"badge" yaml:"badge"`
	Factors   []FactorBarView `json:"factors" yaml:"factors"`
	Explainer string          `json:"explainer" yaml:"explainer"`
	Language  Language        `json:"language" yaml:"language"`
}

// HeaderView is the results header. Domain is empty when classification
// produced none, and the domain line is then omitted.
type HeaderView struct {
	Title      string `json:"title" yaml:"title"`
	MSEID      int64  `json:"mse_id" yaml:"mse_id"`
	MSEName    string `json:"mse_name" yaml:"mse_name"`
	Domain     string `json:"domain,omitempty" yaml:"domain,omitempty"`
	DomainLine string `json:"domain_line,omitempty" yaml:"domain_line,omitempty"`
}

// DashboardView is the full display tree for one dashboard state.
type DashboardView struct {
	Language  Language         `json:"language" yaml:"language"`
	Loading   bool             `json:"loading" yaml:"loading"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Header    *HeaderView      `json:"header,omitempty" yaml:"header,omitempty"`
	Headline  *BadgeView       `json:"headline,omitempty" yaml:"headline,omitempty"`
	Cards     []CardView       `json:"cards" yaml:"cards"`
}

// Badge builds the badge for a score and band.
func Badge(band domain.ConfidenceBand, score float64, lang Language) BadgeView {
	if !band.Valid() {
		band = domain.BandRed
	}
	return BadgeView{
		Band:    band,
		Label:   BandLabel(band, lang),
		Score:   score,
		Percent: FormatComposite(score),
	}
}

// PresentMatch maps one item at the given 1-based rank to a card. The item
// is not modified.
func PresentMatch(item domain.MatchItem, rank int, lang Language) CardView {
	lang = knownLanguage(lang)
	contributions := domain.Contributions(item.Factors)
	bars := make([]FactorBarView, 0, len(contributions))
	for _, c := range contributions {
		bars = append(bars, FactorBarView{
			Factor:  c.Factor,
			Label:   c.Label,
			Weight:  fmt.Sprintf("%.2f", c.Weight),
			Value:   c.Value,
			Percent: FormatFactor(c.Value),
		})
	}

	return CardView{
		Rank:      rank,
		SNPID:     item.SNPID,
		SNPName:   item.SNPName,
		Badge:     Badge(item.ConfidenceBand, item.CompositeScore, lang),
		Factors:   bars,
		Explainer: Explainer(item, lang),
		Language:  lang,
	}
}

var (
	titleFormat = map[Language]string{
		LangEnglish: "Matches for %s",
		LangHindi:   "%s के लिए मिलान",
	}
	domainFormat = map[Language]string{
		LangEnglish: "Predicted ONDC Domain: %s",
		LangHindi:   "अनुमानित ONDC डोमेन: %s",
	}
)

// knownLanguage falls back to English for a language without translations.
func knownLanguage(lang Language) Language {
	if _, ok := titleFormat[lang]; !ok {
		return LangEnglish
	}
	return lang
}

// PresentResponse renders a match response. A nil response yields no header
// and no cards.
func PresentResponse(resp *domain.MatchResponse, lang Language) (*HeaderView, *BadgeView, []CardView) {
	cards := []CardView{}
	if resp == nil {
		return nil, nil, cards
	}
	lang = knownLanguage(lang)

	header := &HeaderView{
		Title:   fmt.Sprintf(titleFormat[lang], resp.MSEName),
		MSEID:   resp.MSEID,
		MSEName: resp.MSEName,
	}
	if resp.HasDomain() {
		header.Domain = *resp.PredictedDomain
		header.DomainLine = fmt.Sprintf(domainFormat[lang], header.Domain)
	}

	headline := Badge(domain.BandRed, 0, lang)
	if len(resp.Matches) > 0 {
		top := resp.Matches[0]
		headline = Badge(top.ConfidenceBand, top.CompositeScore, lang)
	}

	for i, item := range resp.Matches {
		cards = append(cards, PresentMatch(item, i+1, lang))
	}
	return header, &headline, cards
}

// Render is a pure function of the dashboard state and language.
func Render(state *domain.DashboardState, lang Language) DashboardView {
	lang = knownLanguage(lang)
	view := DashboardView{Language: lang, Cards: []CardView{}}
	if state == nil {
		return view
	}

	view.Loading = state.Loading
	view.Error = state.Error
	view.ErrorKind = state.ErrorKind
	view.Header, view.Headline, view.Cards = PresentResponse(state.Result, lang)
	return view
}

// MSERow is one row of the review queue.
type MSERow struct {
	ID          int64  `json:"id" yaml:"id"`
	UdyamNumber string `json:"udyam_number" yaml:"udyam_number"`
	Name        string `json:"name" yaml:"name"`
	State       string `json:"state" yaml:"state"`
	District    string `json:"district" yaml:"district"`
}

const missingValue = "—"

// PresentMSEs maps registrants to review queue rows.
func PresentMSEs(mses []domain.MSE) []MSERow {
	rows := make([]MSERow, 0, len(mses))
	for _, m := range mses {
		rows = append(rows, MSERow{
			ID:          m.ID,
			UdyamNumber: m.UdyamNumber,
			Name:        m.Name,
			State:       orMissing(m.State),
			District:    orMissing(m.District),
		})
	}
	return rows
}

func orMissing(s *string) string {
	if s == nil || *s == "" {
		return missingValue
	}
	return *s
}
