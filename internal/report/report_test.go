package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terratruce-gateway/internal/geocode"
)

func TestSynthesizeWithoutGeocode(t *testing.T) {
	r := Synthesize("Unknown Town", nil)

	require.NotNil(t, r.RiskAnalysis)
	assert.Equal(t, Score(55), r.RiskAnalysis.OverallScore)
	assert.Equal(t, "Unknown Town", r.LocationInfo.FormattedAddress)
	assert.Equal(t, EstimatedJurisdiction, r.LocationInfo.Jurisdiction)
	assert.Equal(t, defaultCoordinates, r.LocationInfo.Coordinates)
	assert.Equal(t, "Unknown Region", r.LocationInfo.Region)
	require.NoError(t, r.Validate())
}

func TestSynthesizeUsesGeocode(t *testing.T) {
	loc := &geocode.Location{
		FormattedAddress: "Chennai, Tamil Nadu, India",
		Coordinates:      geocode.Coordinates{Lat: 13.08, Lng: 80.27},
		Details:          geocode.Details{Country: "India", State: "Tamil Nadu"},
	}
	r := Synthesize("chennai", loc)

	assert.Equal(t, "Chennai, Tamil Nadu, India", r.LocationInfo.FormattedAddress)
	assert.Equal(t, Coordinates{Lat: 13.08, Lng: 80.27}, r.LocationInfo.Coordinates)
	assert.Equal(t, "India", r.LocationInfo.Country)
	assert.Equal(t, "Tamil Nadu", r.LocationInfo.Region)
}

func TestSynthesizeIsComplete(t *testing.T) {
	r := Synthesize("x", nil)

	scores := r.Scores()
	assert.Len(t, scores, 14)
	for _, s := range scores {
		_, ok := FieldPolarity[s.Field]
		assert.True(t, ok, "no polarity for %s", s.Field)
	}

	// Crime is on the worse-when-higher side, air quality the other way.
	assert.Equal(t, HigherIsWorse, FieldPolarity["crime_rate"])
	assert.Equal(t, HigherIsBetter, FieldPolarity["air_quality"])

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, section := range []string{"location_info", "risk_analysis", "historical_trends", "market_intelligence", "legal_resources"} {
		assert.Contains(t, generic, section)
	}
	trends := generic["historical_trends"].(map[string]any)
	assert.Len(t, trends["property_values"], 6)
}

func TestSynthesizeReturnsFreshValues(t *testing.T) {
	a := Synthesize("a", nil)
	b := Synthesize("b", nil)
	a.RiskAnalysis.CrimeRate.Types[0] = "changed"
	assert.Equal(t, "Property crime", b.RiskAnalysis.CrimeRate.Types[0])
}

func TestScoreDecoding(t *testing.T) {
	cases := []struct {
		in   string
		want Score
	}{
		{`42`, 42},
		{`41.6`, 42},
		{`"73"`, 73},
		{`"12%"`, 12},
		{`150`, 100},
		{`-3`, 0},
		{`null`, 0},
		{`"high"`, 0},
		{`{"value":3}`, 0},
	}
	for _, tc := range cases {
		var s Score
		require.NoError(t, json.Unmarshal([]byte(tc.in), &s), tc.in)
		assert.Equal(t, tc.want, s, tc.in)
	}
}

func TestNumberDecoding(t *testing.T) {
	var v struct {
		Price Number `json:"median_price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"median_price":"1,250,000"}`), &v))
	assert.Equal(t, Number(1250000), v.Price)
}

func TestValidate(t *testing.T) {
	r := &RiskReport{}
	assert.ErrorIs(t, r.Validate(), ErrMissingRiskAnalysis)

	r.RiskAnalysis = &RiskAnalysis{OverallScore: 101}
	assert.Error(t, r.Validate())

	r.RiskAnalysis.OverallScore = 100
	assert.NoError(t, r.Validate())
}

func TestConcern(t *testing.T) {
	assert.True(t, Concern("crime_rate", 70))
	assert.False(t, Concern("crime_rate", 20))
	assert.True(t, Concern("growth_potential", 20))
	assert.False(t, Concern("growth_potential", 80))
}

func TestMergeLocation(t *testing.T) {
	r := &RiskReport{
		LocationInfo: LocationInfo{
			FormattedAddress: "model guess",
			Country:          "Model Country",
			Jurisdiction:     "Madras High Court",
		},
		RiskAnalysis: &RiskAnalysis{},
	}

	r.MergeLocation(nil)
	assert.Equal(t, "model guess", r.LocationInfo.FormattedAddress)

	r.MergeLocation(&geocode.Location{
		FormattedAddress: "Chennai, Tamil Nadu, India",
		Coordinates:      geocode.Coordinates{Lat: 13.08, Lng: 80.27},
		Details:          geocode.Details{Country: "India", County: "Chennai District"},
	})
	assert.Equal(t, "Chennai, Tamil Nadu, India", r.LocationInfo.FormattedAddress)
	assert.Equal(t, "India", r.LocationInfo.Country)
	assert.Equal(t, "Chennai District", r.LocationInfo.Region)
	assert.Equal(t, "Madras High Court", r.LocationInfo.Jurisdiction)
}
