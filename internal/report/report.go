// Package report defines the property risk report returned by the analysis
// endpoint, whether it came from the model or from the fallback.
package report

import (
	"errors"
	"fmt"

	"terratruce-gateway/internal/geocode"
)

// ErrMissingRiskAnalysis marks a report without its risk_analysis section.
var ErrMissingRiskAnalysis = errors.New("report: risk_analysis is missing")

type RiskReport struct {
	LocationInfo       LocationInfo       `json:"location_info"`
	RiskAnalysis       *RiskAnalysis      `json:"risk_analysis"`
	HistoricalTrends   HistoricalTrends   `json:"historical_trends"`
	MarketIntelligence MarketIntelligence `json:"market_intelligence"`
	LegalResources     LegalResources     `json:"legal_resources"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LocationInfo struct {
	FormattedAddress string      `json:"formatted_address"`
	Coordinates      Coordinates `json:"coordinates"`
	Region           string      `json:"region"`
	Country          string      `json:"country"`
	Jurisdiction     string      `json:"jurisdiction"`
}

// RiskAnalysis holds the named sub-metrics. Sub-metrics the model left out
// stay nil and are omitted on output.
type RiskAnalysis struct {
	OverallScore         Score                 `json:"overall_score"`
	BuyingRisk           *RiskFactor           `json:"buying_risk,omitempty"`
	RentingRisk          *RiskFactor           `json:"renting_risk,omitempty"`
	FloodRisk            *FloodRisk            `json:"flood_risk,omitempty"`
	CrimeRate            *CrimeRate            `json:"crime_rate,omitempty"`
	AirQuality           *AirQuality           `json:"air_quality,omitempty"`
	Amenities            *Amenities            `json:"amenities,omitempty"`
	Transportation       *Transportation       `json:"transportation,omitempty"`
	Neighbourhood        *Neighbourhood        `json:"neighbourhood,omitempty"`
	EnvironmentalHazards *EnvironmentalHazards `json:"environmental_hazards,omitempty"`
	GrowthPotential      *GrowthPotential      `json:"growth_potential,omitempty"`
	PoliticalStability   *PoliticalStability   `json:"political_stability,omitempty"`
	TradeEconomy         *TradeEconomy         `json:"trade_economy,omitempty"`
	SoilAnalysis         *SoilAnalysis         `json:"soil_analysis,omitempty"`
	NoiseData            *NoiseData            `json:"noise_data,omitempty"`
	LightPollution       *LightPollution       `json:"light_pollution,omitempty"`
	AdditionalInfo       *AdditionalInfo       `json:"additional_info,omitempty"`
}

type RiskFactor struct {
	Score   Score    `json:"score"`
	Status  string   `json:"status"`
	Factors []string `json:"factors"`
}

type FloodRisk struct {
	Score       Score    `json:"score"`
	Level       string   `json:"level"`
	Zones       []string `json:"zones"`
	History     []string `json:"history,omitempty"`
	NearbyWater []string `json:"nearby_water,omitempty"`
	ErosionRisk string   `json:"erosion_risk,omitempty"`
	Description string   `json:"description"`
}

type CrimeRate struct {
	Score       Score    `json:"score"`
	RatePer1000 Number   `json:"rate_per_1000"`
	Trend       string   `json:"trend"`
	Types       []string `json:"types"`
}

type AirQuality struct {
	AQI        Number   `json:"aqi"`
	Score      Score    `json:"score"`
	Rating     string   `json:"rating"`
	Pollutants []string `json:"pollutants"`
}

type Amenities struct {
	Score       Score          `json:"score"`
	Walkability Number         `json:"walkability"`
	Nearby      []AmenityGroup `json:"nearby"`
}

type AmenityGroup struct {
	Type            string     `json:"type"`
	Count           Number     `json:"count"`
	ClosestDistance string     `json:"closest_distance"`
	Facilities      []Facility `json:"facilities,omitempty"`
}

type Facility struct {
	Name       string   `json:"name"`
	Distance   string   `json:"distance"`
	Rating     Number   `json:"rating,omitempty"`
	Quality    string   `json:"quality,omitempty"`
	Type       string   `json:"type,omitempty"`
	Specialty  string   `json:"specialty,omitempty"`
	Size       string   `json:"size,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

type Transportation struct {
	Score            Score    `json:"score"`
	TransitOptions   []string `json:"transit_options"`
	CommuteTime      string   `json:"commute_time"`
	WalkabilityIndex Number   `json:"walkability_index"`
}

type Demographics struct {
	MedianAge         Number `json:"median_age"`
	PopulationDensity string `json:"population_density"`
}

type Neighbourhood struct {
	Score        Score        `json:"score"`
	Rating       string       `json:"rating"`
	Character    string       `json:"character"`
	Demographics Demographics `json:"demographics"`
}

type EnvironmentalHazards struct {
	Score    Score    `json:"score"`
	Hazards  []string `json:"hazards"`
	Severity string   `json:"severity"`
}

type GrowthPotential struct {
	Score      Score    `json:"score"`
	Forecast   string   `json:"forecast"`
	Drivers    []string `json:"drivers"`
	Outlook5yr string   `json:"outlook_5yr"`
}

type PoliticalStability struct {
	Score             Score    `json:"score"`
	Status            string   `json:"status"`
	Factors           []string `json:"factors"`
	RecentEvents      []string `json:"recent_events"`
	PolicyEnvironment string   `json:"policy_environment"`
}

type TradeRelations struct {
	Status           string   `json:"status"`
	KeyPartners      []string `json:"key_partners"`
	ImpactOnProperty string   `json:"impact_on_property"`
}

type TradeEconomy struct {
	GDPGrowth        Number         `json:"gdp_growth"`
	GDPTrend         string         `json:"gdp_trend"`
	InflationRate    Number         `json:"inflation_rate"`
	UnemploymentRate Number         `json:"unemployment_rate"`
	TradeBalance     string         `json:"trade_balance"`
	EconomicOutlook  string         `json:"economic_outlook"`
	MajorIndustries  []string       `json:"major_industries"`
	TradeRelations   TradeRelations `json:"trade_relations"`
}

type SoilAnalysis struct {
	Type               string `json:"type"`
	Stability          string `json:"stability"`
	LiquefactionRisk   string `json:"liquefaction_risk"`
	FoundationConcerns string `json:"foundation_concerns"`
}

type NoiseData struct {
	Score   Score    `json:"score"`
	Level   string   `json:"level"`
	DBAvg   Number   `json:"db_avg"`
	Sources []string `json:"sources"`
}

type LightPollution struct {
	Score       Score  `json:"score"`
	BortleScale Number `json:"bortle_scale"`
	Brightness  string `json:"brightness"`
	Impact      string `json:"impact"`
}

type AdditionalInfo struct {
	SolarPotential          string   `json:"solar_potential"`
	WeatherSummary          string   `json:"weather_summary"`
	ClimateRisks            []string `json:"climate_risks"`
	InsuranceConsiderations string   `json:"insurance_considerations"`
}

type HistoricalTrends struct {
	PropertyValues      []PricePoint      `json:"property_values"`
	CrimeTrends         []CrimePoint      `json:"crime_trends"`
	Population          []PopulationPoint `json:"population"`
	DevelopmentTimeline []Milestone       `json:"development_timeline"`
}

type PricePoint struct {
	Year        int    `json:"year"`
	MedianPrice Number `json:"median_price"`
	ChangePct   Number `json:"change_pct"`
}

type CrimePoint struct {
	Year             int    `json:"year"`
	IncidentsPer1000 Number `json:"incidents_per_1000"`
	ChangePct        Number `json:"change_pct"`
}

type PopulationPoint struct {
	Year      int    `json:"year"`
	Count     Number `json:"count"`
	ChangePct Number `json:"change_pct"`
}

type Milestone struct {
	Year   int      `json:"year"`
	Events []string `json:"events"`
}

type MarketIntelligence struct {
	CurrentTrend   string     `json:"current_trend"`
	Prediction6mo  string     `json:"prediction_6mo"`
	Prediction1yr  string     `json:"prediction_1yr"`
	AISummary      string     `json:"ai_summary"`
	RecentListings []Listing  `json:"recent_listings"`
	News           []NewsItem `json:"news"`
}

type Listing struct {
	Address     string       `json:"address"`
	Price       string       `json:"price"`
	Type        string       `json:"type"`
	Bedrooms    Number       `json:"bedrooms"`
	Sqft        Number       `json:"sqft"`
	Date        string       `json:"date"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type NewsItem struct {
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
	Date      string `json:"date"`
	Source    string `json:"source"`
	Relevance string `json:"relevance"`
}

type LegalResources struct {
	Jurisdiction      string     `json:"jurisdiction"`
	PropertyLawSystem string     `json:"property_law_system"`
	KeyStatutes       []Statute  `json:"key_statutes"`
	DisputeProcess    string     `json:"dispute_process"`
	TypicalTimeline   string     `json:"typical_timeline"`
	Resources         []Resource `json:"resources"`
}

type Statute struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Resource struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// NamedScore is one score of a report together with its field name.
type NamedScore struct {
	Field string
	Score Score
}

// Scores lists overall_score followed by every present sub-metric score,
// in schema order.
func (r *RiskReport) Scores() []NamedScore {
	ra := r.RiskAnalysis
	if ra == nil {
		return nil
	}

	out := []NamedScore{{"overall_score", ra.OverallScore}}
	add := func(field string, present bool, s func() Score) {
		if present {
			out = append(out, NamedScore{field, s()})
		}
	}
	add("buying_risk", ra.BuyingRisk != nil, func() Score { return ra.BuyingRisk.Score })
	add("renting_risk", ra.RentingRisk != nil, func() Score { return ra.RentingRisk.Score })
	add("flood_risk", ra.FloodRisk != nil, func() Score { return ra.FloodRisk.Score })
	add("crime_rate", ra.CrimeRate != nil, func() Score { return ra.CrimeRate.Score })
	add("air_quality", ra.AirQuality != nil, func() Score { return ra.AirQuality.Score })
	add("amenities", ra.Amenities != nil, func() Score { return ra.Amenities.Score })
	add("transportation", ra.Transportation != nil, func() Score { return ra.Transportation.Score })
	add("neighbourhood", ra.Neighbourhood != nil, func() Score { return ra.Neighbourhood.Score })
	add("environmental_hazards", ra.EnvironmentalHazards != nil, func() Score { return ra.EnvironmentalHazards.Score })
	add("growth_potential", ra.GrowthPotential != nil, func() Score { return ra.GrowthPotential.Score })
	add("political_stability", ra.PoliticalStability != nil, func() Score { return ra.PoliticalStability.Score })
	add("noise_data", ra.NoiseData != nil, func() Score { return ra.NoiseData.Score })
	add("light_pollution", ra.LightPollution != nil, func() Score { return ra.LightPollution.Score })
	return out
}

// Validate checks the structural minimum shared by model output and
// fallback reports. Decoded scores are already clamped, so the range check
// only catches reports built in code.
func (r *RiskReport) Validate() error {
	if r.RiskAnalysis == nil {
		return ErrMissingRiskAnalysis
	}
	for _, s := range r.Scores() {
		if s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("report: %s score %d out of range", s.Field, s.Score)
		}
	}
	return nil
}

// MergeLocation overlays the geocoder's address, coordinates, country and
// region onto the report. The geocoder is deterministic, so it wins over
// whatever the model wrote for these fields. A nil loc is a no-op.
func (r *RiskReport) MergeLocation(loc *geocode.Location) {
	if loc == nil {
		return
	}
	r.LocationInfo.FormattedAddress = loc.FormattedAddress
	r.LocationInfo.Coordinates = Coordinates{Lat: loc.Coordinates.Lat, Lng: loc.Coordinates.Lng}
	r.LocationInfo.Country = loc.Details.Country
	r.LocationInfo.Region = loc.Region()
}
