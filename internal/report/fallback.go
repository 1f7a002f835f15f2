package report

import "terratruce-gateway/internal/geocode"

// EstimatedJurisdiction marks a synthesized report to the reader.
const EstimatedJurisdiction = "Data unavailable - using estimates"

// defaultCoordinates are used when no geocode preceded the failure.
var defaultCoordinates = Coordinates{Lat: 40.7128, Lng: -74.006}

// Synthesize builds a complete report from static moderate defaults plus
// whatever the geocoder found. It does no I/O and cannot fail.
func Synthesize(location string, loc *geocode.Location) *RiskReport {
	info := LocationInfo{
		FormattedAddress: location,
		Coordinates:      defaultCoordinates,
		Region:           "Unknown Region",
		Country:          "Unknown",
		Jurisdiction:     EstimatedJurisdiction,
	}
	if loc != nil {
		if loc.FormattedAddress != "" {
			info.FormattedAddress = loc.FormattedAddress
		}
		info.Coordinates = Coordinates{Lat: loc.Coordinates.Lat, Lng: loc.Coordinates.Lng}
		if loc.Details.State != "" {
			info.Region = loc.Details.State
		}
		if loc.Details.Country != "" {
			info.Country = loc.Details.Country
		}
	}

	return &RiskReport{
		LocationInfo: info,
		RiskAnalysis: &RiskAnalysis{
			OverallScore: 55,
			BuyingRisk: &RiskFactor{
				Score:   52,
				Status:  "Medium",
				Factors: []string{"Limited data available", "Market volatility"},
			},
			RentingRisk: &RiskFactor{
				Score:   48,
				Status:  "Medium",
				Factors: []string{"Average market conditions"},
			},
			FloodRisk: &FloodRisk{
				Score:       30,
				Level:       "Low",
				Zones:       []string{},
				History:     []string{"No recent major flooding events"},
				NearbyWater: []string{"Small creek 2km away"},
				ErosionRisk: "Low",
				Description: "Estimated low flood risk with stable soil conditions.",
			},
			CrimeRate: &CrimeRate{
				Score:       45,
				RatePer1000: 25,
				Trend:       "Stable",
				Types:       []string{"Property crime", "Theft"},
			},
			AirQuality: &AirQuality{
				AQI:        75,
				Score:      70,
				Rating:     "Moderate",
				Pollutants: []string{"PM2.5"},
			},
			Amenities: &Amenities{
				Score:       65,
				Walkability: 60,
				Nearby: []AmenityGroup{
					{Type: "Schools", Count: 3, ClosestDistance: "1.2 km"},
					{Type: "Hospitals", Count: 2, ClosestDistance: "2.5 km"},
				},
			},
			Transportation: &Transportation{
				Score:            60,
				TransitOptions:   []string{"Bus"},
				CommuteTime:      "30-45 min",
				WalkabilityIndex: 55,
			},
			Neighbourhood: &Neighbourhood{
				Score:        65,
				Rating:       "Average",
				Character:    "Mixed residential area",
				Demographics: Demographics{MedianAge: 35, PopulationDensity: "Medium"},
			},
			EnvironmentalHazards: &EnvironmentalHazards{
				Score:    20,
				Hazards:  []string{},
				Severity: "Low",
			},
			GrowthPotential: &GrowthPotential{
				Score:      60,
				Forecast:   "Moderate Growth",
				Drivers:    []string{"Economic development"},
				Outlook5yr: "Steady appreciation expected",
			},
			PoliticalStability: &PoliticalStability{
				Score:             60,
				Status:            "Stable",
				Factors:           []string{"Data unavailable"},
				RecentEvents:      []string{},
				PolicyEnvironment: "Data unavailable",
			},
			TradeEconomy: &TradeEconomy{
				GDPTrend:        "Stable",
				TradeBalance:    "Data unavailable",
				EconomicOutlook: "Moderate",
				MajorIndustries: []string{},
				TradeRelations: TradeRelations{
					Status:           "Good",
					KeyPartners:      []string{},
					ImpactOnProperty: "Data unavailable",
				},
			},
			SoilAnalysis: &SoilAnalysis{
				Type:               "Loamy",
				Stability:          "High",
				LiquefactionRisk:   "None",
				FoundationConcerns: "Standard foundation recommended",
			},
			NoiseData: &NoiseData{
				Score:   35,
				Level:   "Quiet",
				DBAvg:   45,
				Sources: []string{"Local traffic"},
			},
			LightPollution: &LightPollution{
				Score:       40,
				BortleScale: 4,
				Brightness:  "Moderate",
				Impact:      "Suburban sky visibility",
			},
			AdditionalInfo: &AdditionalInfo{
				SolarPotential:          "Good",
				WeatherSummary:          "Data unavailable",
				ClimateRisks:            []string{},
				InsuranceConsiderations: "Standard insurance recommended",
			},
		},
		HistoricalTrends: HistoricalTrends{
			PropertyValues: []PricePoint{
				{2019, 250000, 0},
				{2020, 265000, 6},
				{2021, 295000, 11.3},
				{2022, 320000, 8.5},
				{2023, 335000, 4.7},
				{2024, 350000, 4.5},
			},
			CrimeTrends: []CrimePoint{
				{2019, 28, 0},
				{2020, 26, -7.1},
				{2021, 27, 3.8},
				{2022, 25, -7.4},
				{2023, 24, -4},
				{2024, 25, 4.2},
			},
			Population: []PopulationPoint{
				{2019, 50000, 0},
				{2020, 51000, 2},
				{2021, 52500, 2.9},
				{2022, 54000, 2.9},
				{2023, 55500, 2.8},
				{2024, 57000, 2.7},
			},
			DevelopmentTimeline: []Milestone{
				{2020, []string{"New transit line approved"}},
				{2022, []string{"Shopping center opened"}},
				{2023, []string{"School expansion completed"}},
				{2024, []string{"Park renovation"}},
			},
		},
		MarketIntelligence: MarketIntelligence{
			CurrentTrend:   "Up",
			Prediction6mo:  "Moderate appreciation expected",
			Prediction1yr:  "Continued steady growth likely",
			AISummary:      "Estimated data due to API limits. Research recommended.",
			RecentListings: []Listing{},
			News: []NewsItem{{
				Headline:  "Data unavailable",
				Summary:   "Unable to fetch recent news.",
				Date:      "N/A",
				Source:    "System",
				Relevance: "Low",
			}},
		},
		LegalResources: LegalResources{
			Jurisdiction:      "Data unavailable",
			PropertyLawSystem: "Unknown",
			KeyStatutes:       []Statute{},
			DisputeProcess:    "Consult local legal resources.",
			TypicalTimeline:   "Varies",
			Resources:         []Resource{},
		},
	}
}
