package usecase

import (
	"testing"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectLanguage(t *testing.T) {
	tests := []struct {
		raw  string
		want Language
	}{
		{"", LangEnglish},
		{"en", LangEnglish},
		{"hi", LangHindi},
		{"HI", LangHindi},
		{"hi-IN", LangHindi},
		{"hi-IN,hi;q=0.9,en;q=0.8", LangHindi},
		{"en-GB,hi;q=0.5", LangEnglish},
		{"fr", LangEnglish},
		{"ta", LangEnglish},
		{"not a language", LangEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectLanguage(tt.raw))
		})
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "75.5%", FormatComposite(0.755))
	assert.Equal(t, "0.0%", FormatComposite(0))
	assert.Equal(t, "100.0%", FormatComposite(1))
	assert.Equal(t, "92.3%", FormatComposite(0.9234))

	assert.Equal(t, "90%", FormatFactor(0.9))
	assert.Equal(t, "0%", FormatFactor(0))
	assert.Equal(t, "67%", FormatFactor(0.666))
}

func TestBandLabel(t *testing.T) {
	assert.Equal(t, "High Confidence", BandLabel(domain.BandGreen, LangEnglish))
	assert.Equal(t, "Medium Confidence", BandLabel(domain.BandYellow, LangEnglish))
	assert.Equal(t, "Low Confidence", BandLabel(domain.BandRed, LangEnglish))
	assert.Equal(t, "उच्च विश्वास", BandLabel(domain.BandGreen, LangHindi))
	assert.Equal(t, "निम्न विश्वास", BandLabel(domain.BandRed, LangHindi))
	assert.Equal(t, "Low Confidence", BandLabel("amber", Language("xx")))
}

func TestPresentMatch(t *testing.T) {
	item := domain.MatchItem{
		SNPID:          11,
		SNPName:        "Bharat Craft Exports",
		CompositeScore: 0.755,
		ConfidenceBand: domain.BandYellow,
		Factors:        domain.FactorBreakdown{Domain: 0.9, Geo: 0.8, Commission: 0.6, History: 0.7, Sentiment: 0.5},
		ExplainerEN:    "Strong domain fit.",
		ExplainerHI:    "मजबूत डोमेन मेल।",
	}
	original := item

	card := PresentMatch(item, 1, LangEnglish)
	assert.Equal(t, 1, card.Rank)
	assert.Equal(t, "75.5%", card.Badge.Percent)
	assert.Equal(t, "Medium Confidence", card.Badge.Label)
	assert.Equal(t, "Strong domain fit.", card.Explainer)
	require.Len(t, card.Factors, 5)
	assert.Equal(t, "Domain Fit", card.Factors[0].Label)
	assert.Equal(t, "0.35", card.Factors[0].Weight)
	assert.Equal(t, "90%", card.Factors[0].Percent)
	assert.Equal(t, "50%", card.Factors[4].Percent)

	hi := PresentMatch(item, 2, LangHindi)
	assert.Equal(t, "मजबूत डोमेन मेल।", hi.Explainer)
	assert.Equal(t, "मध्यम विश्वास", hi.Badge.Label)

	assert.Equal(t, original, item, "item is not mutated")
}

func TestRender(t *testing.T) {
	t.Run("nil state renders empty view", func(t *testing.T) {
		view := Render(nil, LangEnglish)
		assert.Nil(t, view.Header)
		assert.Nil(t, view.Headline)
		assert.Empty(t, view.Cards)
		assert.NotNil(t, view.Cards)
	})

	t.Run("loading with no result", func(t *testing.T) {
		view := Render(&domain.DashboardState{Loading: true}, LangEnglish)
		assert.True(t, view.Loading)
		assert.Nil(t, view.Header)
		assert.Empty(t, view.Error)
	})

	t.Run("error banner", func(t *testing.T) {
		view := Render(&domain.DashboardState{Error: "model unavailable", ErrorKind: domain.KindRemoteRejected}, LangEnglish)
		assert.Equal(t, "model unavailable", view.Error)
		assert.Equal(t, domain.KindRemoteRejected, view.ErrorKind)
		assert.Empty(t, view.Cards)
	})

	t.Run("result with domain", func(t *testing.T) {
		resp := sampleResponse(3, 3)
		view := Render(&domain.DashboardState{Result: resp}, LangEnglish)

		require.NotNil(t, view.Header)
		assert.Equal(t, "Matches for MSE 3", view.Header.Title)
		assert.Equal(t, "Predicted ONDC Domain: ONDC:RET10", view.Header.DomainLine)
		require.Len(t, view.Cards, 3)
		for i, c := range view.Cards {
			assert.Equal(t, i+1, c.Rank)
			assert.Equal(t, resp.Matches[i].SNPID, c.SNPID)
		}
		require.NotNil(t, view.Headline)
		assert.Equal(t, resp.Matches[0].ConfidenceBand, view.Headline.Band)
	})

	t.Run("null predicted domain omits domain line", func(t *testing.T) {
		resp := sampleResponse(3, 1)
		resp.PredictedDomain = nil
		view := Render(&domain.DashboardState{Result: resp}, LangHindi)

		require.NotNil(t, view.Header)
		assert.Empty(t, view.Header.Domain)
		assert.Empty(t, view.Header.DomainLine)
		assert.Equal(t, LangHindi, view.Language)
	})

	t.Run("empty match list shows red zero headline", func(t *testing.T) {
		resp := &domain.MatchResponse{MSEID: 5, MSEName: "Empty", Matches: nil}
		view := Render(&domain.DashboardState{Result: resp}, LangEnglish)

		assert.Empty(t, view.Cards)
		require.NotNil(t, view.Headline)
		assert.Equal(t, domain.BandRed, view.Headline.Band)
		assert.Equal(t, "0.0%", view.Headline.Percent)
	})

	t.Run("unknown language falls back to English", func(t *testing.T) {
		view := Render(&domain.DashboardState{Result: sampleResponse(1, 1)}, Language("fr"))
		assert.Equal(t, LangEnglish, view.Language)
		assert.Equal(t, "english", view.Cards[0].Explainer)
	})
}

func TestPresentResponse_UnknownLanguage(t *testing.T) {
	header, headline, cards := PresentResponse(sampleResponse(3, 1), Language("fr"))

	require.NotNil(t, header)
	assert.Equal(t, "Matches for MSE 3", header.Title)
	assert.Equal(t, "Predicted ONDC Domain: ONDC:RET10", header.DomainLine)
	require.NotNil(t, headline)
	require.Len(t, cards, 1)
	assert.Equal(t, LangEnglish, cards[0].Language)
	assert.Equal(t, "english", cards[0].Explainer)
}

func TestPresentMSEs(t *testing.T) {
	state := "Uttar Pradesh"
	rows := PresentMSEs([]domain.MSE{
		{ID: 1, UdyamNumber: "UDYAM-UP-00-0000001", Name: "Varanasi Silks", State: &state},
		{ID: 2, Name: "No State"},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "Uttar Pradesh", rows[0].State)
	assert.Equal(t, "—", rows[0].District)
	assert.Equal(t, "—", rows[1].State)
	assert.Empty(t, PresentMSEs(nil))
}
