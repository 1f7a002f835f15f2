package analysis

import "strings"

const analysisSystemPrompt = "You are a real estate risk analyst. Never use markdown. Reply with valid JSON in English only."

// reportSchema lists the sections and fields the model must fill. Scores are
// integers in 0-100; the note after each score gives its direction.
const reportSchema = `{
  "location_info": {"formatted_address": "", "coordinates": {"lat": 0, "lng": 0}, "region": "", "country": "", "jurisdiction": ""},
  "risk_analysis": {
    "overall_score": 0 (100 = highest risk),
    "buying_risk": {"score": 0, "status": "High|Medium|Low", "factors": []},
    "renting_risk": {"score": 0, "status": "High|Medium|Low", "factors": []},
    "flood_risk": {"score": 0, "level": "Extreme|High|Moderate|Low|Minimal", "zones": [], "description": ""},
    "crime_rate": {"score": 0 (low = safe), "rate_per_1000": 0, "trend": "Increasing|Stable|Decreasing", "types": []},
    "air_quality": {"aqi": 0, "score": 0 (high = good), "rating": "Good|Moderate|Unhealthy|Hazardous", "pollutants": []},
    "amenities": {"score": 0, "walkability": 0, "nearby": [{"type": "Schools|Hospitals|Shopping|Parks", "count": 0, "closest_distance": "X km", "facilities": [{"name": "", "distance": "X km", "rating": 0, "quality": "", "type": "", "highlights": []}]}]},
    "transportation": {"score": 0, "transit_options": [], "commute_time": "", "walkability_index": 0},
    "neighbourhood": {"score": 0, "rating": "Excellent|Good|Average|Poor", "character": "", "demographics": {"median_age": 0, "population_density": "High|Medium|Low"}},
    "environmental_hazards": {"score": 0 (low = good), "hazards": [], "severity": "High|Medium|Low|None"},
    "growth_potential": {"score": 0, "forecast": "Strong Growth|Moderate Growth|Stable|Declining", "drivers": [], "outlook_5yr": ""},
    "political_stability": {"score": 0 (high = stable), "status": "Very Stable|Stable|Unstable", "factors": [], "recent_events": [], "policy_environment": ""},
    "trade_economy": {"gdp_growth": 0, "gdp_trend": "", "inflation_rate": 0, "unemployment_rate": 0, "trade_balance": "Surplus|Deficit", "economic_outlook": "Strong|Moderate|Weak", "major_industries": [], "trade_relations": {"status": "", "key_partners": [], "impact_on_property": ""}},
    "soil_analysis": {"type": "Clay|Sandy|Loamy|Rocky", "stability": "High|Moderate|Low", "liquefaction_risk": "High|Moderate|Low|None", "foundation_concerns": ""},
    "noise_data": {"score": 0 (low = quiet), "level": "Very Quiet|Quiet|Moderate|Noisy", "db_avg": 0, "sources": []},
    "light_pollution": {"score": 0 (low = dark sky), "bortle_scale": 0, "brightness": "Dark Sky|Good|Moderate|Bright", "impact": ""},
    "additional_info": {"solar_potential": "Excellent|Good|Fair|Poor", "weather_summary": "", "climate_risks": [], "insurance_considerations": ""}
  },
  "historical_trends": {
    "property_values": [{"year": 2019, "median_price": 0, "change_pct": 0}],
    "crime_trends": [{"year": 2019, "incidents_per_1000": 0, "change_pct": 0}],
    "population": [{"year": 2019, "count": 0, "change_pct": 0}],
    "development_timeline": [{"year": 2020, "events": []}]
  },
  "market_intelligence": {"current_trend": "Up|Down|Stable", "prediction_6mo": "", "prediction_1yr": "", "ai_summary": "", "recent_listings": [{"address": "", "price": "", "type": "Apartment|House|Land", "bedrooms": 0, "sqft": 0, "date": "", "coordinates": {"lat": 0, "lng": 0}}], "news": [{"headline": "", "summary": "", "date": "", "source": "", "relevance": "High|Medium|Low"}]},
  "legal_resources": {"jurisdiction": "", "property_law_system": "Common Law|Civil Law", "key_statutes": [{"name": "", "description": ""}], "dispute_process": "", "typical_timeline": "", "resources": [{"name": "", "type": "", "description": ""}]}
}`

func analysisPrompt(locationContext string) string {
	var b strings.Builder
	b.WriteString("Analyze the property risk for this location:\n")
	b.WriteString(locationContext)
	b.WriteString("\n\nReturn one JSON object with exactly this structure. Time series cover 2019 to 2024.\n")
	b.WriteString(reportSchema)
	b.WriteString("\n\nOutput valid JSON only, no markdown code fences.")
	return b.String()
}

const extractSystemPrompt = "You extract addresses precisely. Output only the address or 'No address found'."

func extractPrompt(text string) string {
	return "Extract the primary property address from the following OCR text.\n" +
		"If several addresses appear, pick the one the document is about (the property for sale or lease).\n" +
		"Return only the address string and nothing else.\n" +
		"If there is no address, return \"" + NoAddressFound + "\".\n\n" +
		"Document text:\n\"\"\"\n" + text + "\n\"\"\""
}
